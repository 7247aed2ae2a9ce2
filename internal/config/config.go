package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Storage backends for the credential slot.
const (
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendBolt    = "bolt"
	BackendKeyring = "keyring"
	BackendMemory  = "memory"
)

// Key derivation functions understood by the encryption service.
const (
	KDFPBKDF2 = "pbkdf2-sha256"
	KDFScrypt = "scrypt"
)

// MinIterations is the lowest PBKDF2 cost accepted in configuration.
const MinIterations = 100000

// Config holds all application configuration.
type Config struct {
	// Credential storage
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Passphrase encryption
	Crypto CryptoConfig `json:"crypto" mapstructure:"crypto"`

	// Diff engine behavior
	Diff DiffConfig `json:"diff" mapstructure:"diff"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// StorageConfig selects where the vault keeps its state.
type StorageConfig struct {
	DataDir        string `json:"data_dir" mapstructure:"data_dir"`               // Base directory for all data
	Backend        string `json:"backend" mapstructure:"backend"`                 // Durable store for the encrypted slot and salt
	LegacyBackend  string `json:"legacy_backend" mapstructure:"legacy_backend"`   // Deprecated plaintext location
	KeyringService string `json:"keyring_service" mapstructure:"keyring_service"` // Service name for OS keyring entries
}

// Path returns name resolved inside the data directory.
func (s StorageConfig) Path(name string) string {
	return filepath.Join(s.DataDir, name)
}

// CryptoConfig tunes key derivation. Values are recorded in every blob so
// they can be raised without breaking existing data.
type CryptoConfig struct {
	KDF        string `json:"kdf" mapstructure:"kdf"`
	Iterations int    `json:"iterations" mapstructure:"iterations"`
}

// DiffConfig for the sync diff engine.
type DiffConfig struct {
	HistorySize   int      `json:"history_size" mapstructure:"history_size"`     // Snapshots kept in memory
	IncludeHidden bool     `json:"include_hidden" mapstructure:"include_hidden"` // Scan dot-directories
	Ignore        []string `json:"ignore" mapstructure:"ignore"`                 // Glob patterns skipped by the scanner
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level      string `json:"level" mapstructure:"level"`             // debug, info, warn, error
	Format     string `json:"format" mapstructure:"format"`           // text, json
	File       string `json:"file" mapstructure:"file"`               // Log file path (empty = stderr)
	MaxSize    int    `json:"max_size" mapstructure:"max_size"`       // Max log file size in MB
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"` // Max number of old logs
	MaxAge     int    `json:"max_age" mapstructure:"max_age"`         // Max age in days
	Color      bool   `json:"color" mapstructure:"color"`             // Enable colored output
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:        ".syncvault",
			Backend:        BackendFile,
			LegacyBackend:  BackendFile,
			KeyringService: "syncvault",
		},
		Crypto: CryptoConfig{
			KDF:        KDFPBKDF2,
			Iterations: 600000,
		},
		Diff: DiffConfig{
			HistorySize:   10,
			IncludeHidden: false,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			Color:      true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	durable := map[string]bool{
		BackendFile: true, BackendSQLite: true, BackendBolt: true,
		BackendKeyring: true, BackendMemory: true,
	}
	if !durable[c.Storage.Backend] {
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}
	if !durable[c.Storage.LegacyBackend] {
		return fmt.Errorf("invalid legacy storage backend: %s", c.Storage.LegacyBackend)
	}

	switch c.Crypto.KDF {
	case KDFPBKDF2:
		if c.Crypto.Iterations < MinIterations {
			return fmt.Errorf("crypto.iterations must be at least %d", MinIterations)
		}
	case KDFScrypt:
	default:
		return fmt.Errorf("invalid kdf: %s", c.Crypto.KDF)
	}

	if c.Diff.HistorySize <= 0 {
		return errors.New("diff.history_size must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
