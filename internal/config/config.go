// Package config resolves the tool's config/data directories and loads
// user settings from a yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ggufscope/internal/meta"
)

const appDir = "ggufscope"

// GetConfigDir returns the directory holding settings.yaml.
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// GetDataDir returns the directory holding the history database.
func GetDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appDir), nil
}

// Settings are the user-tunable knobs persisted in settings.yaml.
type Settings struct {
	DisplayThreshold   int    `yaml:"display_threshold"`
	ArrayPreview       int    `yaml:"array_preview"`
	ArrayFullThreshold int    `yaml:"array_full_threshold"`
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	l := meta.DefaultLimits()
	return Settings{
		DisplayThreshold:   l.DisplayThreshold,
		ArrayPreview:       l.ArrayPreview,
		ArrayFullThreshold: l.ArrayFullThreshold,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Limits converts the settings into transformer thresholds.
func (s Settings) Limits() meta.Limits {
	return meta.Limits{
		DisplayThreshold:   s.DisplayThreshold,
		ArrayPreview:       s.ArrayPreview,
		ArrayFullThreshold: s.ArrayFullThreshold,
	}
}

// LoadSettings reads settings.yaml from the config directory. A missing
// file yields the defaults.
func LoadSettings() (Settings, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return DefaultSettings(), err
	}
	return loadFrom(filepath.Join(dir, "settings.yaml"))
}

// SaveSettings writes s to settings.yaml, creating the config directory
// if needed.
func SaveSettings(s Settings) error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return saveTo(filepath.Join(dir, "settings.yaml"), s)
}

func loadFrom(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), fmt.Errorf("failed to read settings: %w", err)
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}

func saveTo(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
