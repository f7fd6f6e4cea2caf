package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ggufscope/internal/config"
	"ggufscope/internal/history"
	"ggufscope/internal/loader"
	"ggufscope/internal/logging"
	"ggufscope/internal/meta"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ggufscope",
		Short: "GGUF model metadata inspector",
		Long: `Ggufscope reads the metadata section of GGUF model containers
and presents every key/value record in a display-safe form, with
oversized, binary, and tokenizer content available behind a full view.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	// version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("ggufscope %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	})

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ggufscope config and history database",
		Run: func(cmd *cobra.Command, args []string) {
			type Result struct {
				OK        bool   `json:"ok"`
				Message   string `json:"message,omitempty"`
				ConfigDir string `json:"config_dir,omitempty"`
				DataDir   string `json:"data_dir,omitempty"`
				DBPath    string `json:"db_path,omitempty"`
			}

			result := Result{OK: true}

			configDir, err := config.GetConfigDir()
			if err != nil {
				fail(fmt.Sprintf("Failed to get config directory: %v", err))
			}
			result.ConfigDir = configDir

			dataDir, err := config.GetDataDir()
			if err != nil {
				fail(fmt.Sprintf("Failed to get data directory: %v", err))
			}
			result.DataDir = dataDir

			if err := os.MkdirAll(configDir, 0755); err != nil {
				fail(fmt.Sprintf("Failed to create config directory: %v", err))
			}
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				fail(fmt.Sprintf("Failed to create data directory: %v", err))
			}

			settings, err := config.LoadSettings()
			if err != nil {
				fail(fmt.Sprintf("Failed to load settings: %v", err))
			}
			if err := config.SaveSettings(settings); err != nil {
				fail(fmt.Sprintf("Failed to write settings: %v", err))
			}

			if err := history.Init(); err != nil {
				fail(fmt.Sprintf("Failed to initialize database: %v", err))
			}
			dbPath, _ := history.GetPath()
			result.DBPath = dbPath
			result.Message = "Initialized"

			if jsonOutput {
				printJSON(result)
			} else {
				fmt.Printf("Config dir: %s\nData dir:   %s\nDatabase:   %s\n", result.ConfigDir, result.DataDir, result.DBPath)
			}
		},
	}
}

func inspectCmd() *cobra.Command {
	var showFull bool
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "inspect <file.gguf>",
		Short: "Load a GGUF file and print its metadata entries",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := args[0]
			settings := setup()

			outcome, elapsed := runLoad(path, settings)
			recordOutcome(path, outcome, elapsed, noHistory)

			if outcome.Err != nil {
				fail(outcome.Err.Error())
			}

			if jsonOutput {
				printJSON(struct {
					Path       string               `json:"path"`
					Entries    []meta.MetadataEntry `json:"entries"`
					DurationMs int64                `json:"duration_ms"`
				}{Path: path, Entries: outcome.Entries, DurationMs: elapsed.Milliseconds()})
				return
			}

			for _, e := range outcome.Entries {
				fmt.Printf("%s: %s\n", e.Key, e.DisplayValue)
				if showFull && e.FullValue != nil {
					fmt.Printf("  full: %s\n", *e.FullValue)
				}
			}
			fmt.Fprintf(os.Stderr, "%d entries in %s\n", len(outcome.Entries), elapsed.Round(time.Millisecond))
		},
	}

	cmd.Flags().BoolVar(&showFull, "full", false, "Also print deferred full values")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip recording this load in the history database")
	return cmd
}

func viewCmd() *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "view <file.gguf> <key>",
		Short: "Print the complete content of one entry (chat template, tokens, merges, binary blobs)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			path, key := args[0], args[1]
			settings := setup()

			outcome, elapsed := runLoad(path, settings)
			recordOutcome(path, outcome, elapsed, noHistory)

			if outcome.Err != nil {
				fail(outcome.Err.Error())
			}

			for _, e := range outcome.Entries {
				if e.Key != key {
					continue
				}
				if e.FullValue == nil {
					// Nothing deferred; the display value is already complete.
					fmt.Println(e.DisplayValue)
					return
				}
				fmt.Println(*e.FullValue)
				return
			}
			fail(fmt.Sprintf("no entry with key %q", key))
		},
	}

	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip recording this load in the history database")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent loads",
		Run: func(cmd *cobra.Command, args []string) {
			db, err := history.Open()
			if err != nil {
				fail(fmt.Sprintf("Failed to open history: %v", err))
			}
			defer db.Close()

			loads, err := history.Recent(db, limit)
			if err != nil {
				fail(fmt.Sprintf("Failed to list history: %v", err))
			}

			if jsonOutput {
				printJSON(loads)
				return
			}
			for _, l := range loads {
				line := fmt.Sprintf("%s  %-9s  %s  (%d entries, %s)",
					l.CreatedAt.Format("2006-01-02 15:04:05"), l.Status, l.Path, l.EntryCount, l.Duration.Round(time.Millisecond))
				if l.Error != nil {
					line += "  error: " + *l.Error
				}
				fmt.Println(line)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to list")
	return cmd
}

// setup loads settings and configures logging.
func setup() config.Settings {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}
	logging.Setup(settings.LogLevel, settings.LogFormat)
	return settings
}

// runLoad starts the background loader and polls progress until the
// outcome is delivered, mirroring how a render loop would consume it.
func runLoad(path string, settings config.Settings) (*loader.Outcome, time.Duration) {
	transformer := meta.NewTransformer(settings.Limits())
	ld := loader.New(loader.FileSource{}, transformer, slog.Default())

	start := time.Now()
	if err := ld.Start(path); err != nil {
		return &loader.Outcome{Err: err}, time.Since(start)
	}

	showProgress := !jsonOutput
	for {
		if outcome, ok := ld.Poll(); ok {
			if showProgress {
				fmt.Fprint(os.Stderr, "\r\033[K")
			}
			return outcome, time.Since(start)
		}
		if showProgress {
			fmt.Fprintf(os.Stderr, "\rloading… %3.0f%%", ld.Progress()*100)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// recordOutcome writes the load into the history database, best effort.
func recordOutcome(path string, outcome *loader.Outcome, elapsed time.Duration, skip bool) {
	if skip {
		return
	}
	// A rejected concurrent start is caller misuse, not a load outcome.
	if outcome.Err != nil && errors.Is(outcome.Err, loader.ErrLoadInProgress) {
		return
	}

	log := logging.WithFields("path", path)
	if err := history.Init(); err != nil {
		log.Warn("history unavailable", "error", err)
		return
	}
	db, err := history.Open()
	if err != nil {
		log.Warn("history unavailable", "error", err)
		return
	}
	defer db.Close()

	l := history.Load{
		Path:     path,
		Status:   history.StatusSucceeded,
		Duration: elapsed,
	}
	if fi, err := os.Stat(path); err == nil {
		l.FileSize = fi.Size()
	}
	if outcome.Err != nil {
		l.Status = history.StatusFailed
		msg := outcome.Err.Error()
		l.Error = &msg
	} else {
		l.EntryCount = len(outcome.Entries)
	}

	if _, err := history.Record(db, l); err != nil {
		log.Warn("failed to record load", "error", err)
	}
}

func fail(message string) {
	if jsonOutput {
		printJSON(map[string]any{"ok": false, "message": message})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
