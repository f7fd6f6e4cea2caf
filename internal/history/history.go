// Package history persists one row per completed load in a local
// sqlite database, for the `ggufscope history` command.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ggufscope/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Load statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Load is one recorded load outcome.
type Load struct {
	ID         string
	Path       string
	FileSize   int64
	EntryCount int
	Status     string
	Error      *string
	Duration   time.Duration
	CreatedAt  time.Time
}

// Init initializes the database and creates tables if needed
func Init() error {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ggufscope.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Execute schema
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Open opens a connection to the database
func Open() (*sql.DB, error) {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "ggufscope.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// GetPath returns the path to the database file
func GetPath() (string, error) {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "ggufscope.db"), nil
}

// Record inserts one load outcome. A zero ID gets a fresh uuid.
func Record(db *sql.DB, l Load) (string, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	var errText sql.NullString
	if l.Error != nil {
		errText = sql.NullString{String: *l.Error, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO loads (id, path, file_size, entry_count, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.Path, l.FileSize, l.EntryCount, l.Status, errText, l.Duration.Milliseconds(), l.CreatedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("failed to record load: %w", err)
	}
	return l.ID, nil
}

// Recent returns the most recent loads, newest first.
func Recent(db *sql.DB, limit int) ([]Load, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, path, file_size, entry_count, status, error, duration_ms, created_at
		FROM loads
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query loads: %w", err)
	}
	defer rows.Close()

	var loads []Load
	for rows.Next() {
		var l Load
		var errText sql.NullString
		var durationMs, createdAt int64

		if err := rows.Scan(&l.ID, &l.Path, &l.FileSize, &l.EntryCount, &l.Status, &errText, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan load: %w", err)
		}

		if errText.Valid {
			l.Error = &errText.String
		}
		l.Duration = time.Duration(durationMs) * time.Millisecond
		l.CreatedAt = time.Unix(createdAt, 0)
		loads = append(loads, l)
	}
	return loads, rows.Err()
}
