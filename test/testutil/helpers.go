package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/syncvault/internal/config"
)

// LogEntry is one decoded JSON log line.
type LogEntry map[string]interface{}

// Message returns the entry's msg field.
func (e LogEntry) Message() string {
	msg, _ := e["msg"].(string)
	return msg
}

// Level returns the entry's level field.
func (e LogEntry) Level() string {
	level, _ := e["level"].(string)
	return level
}

// TestHelpers provides common test helper functions.
type TestHelpers struct {
	t       *testing.T
	tempDir string
}

// NewTestHelpers creates test helpers.
func NewTestHelpers(t *testing.T) *TestHelpers {
	return &TestHelpers{
		t:       t,
		tempDir: t.TempDir(),
	}
}

// TempDir returns the temporary directory for this test.
func (h *TestHelpers) TempDir() string {
	return h.tempDir
}

// CreateTempFile creates a file relative to the temp dir with content and
// modification time.
func (h *TestHelpers) CreateTempFile(name, content string, mtime time.Time) string {
	path := filepath.Join(h.tempDir, filepath.FromSlash(name))

	err := os.MkdirAll(filepath.Dir(path), 0755)
	require.NoError(h.t, err)

	err = os.WriteFile(path, []byte(content), 0644)
	require.NoError(h.t, err)

	err = os.Chtimes(path, mtime, mtime)
	require.NoError(h.t, err)

	return path
}

// WriteJSON writes v as JSON relative to the temp dir.
func (h *TestHelpers) WriteJSON(name string, v interface{}) string {
	data, err := json.Marshal(v)
	require.NoError(h.t, err)

	path := filepath.Join(h.tempDir, name)
	require.NoError(h.t, os.WriteFile(path, data, 0644))
	return path
}

// TestContext creates a test context with reasonable timeout.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestConfigWithDir creates a test configuration.
func TestConfigWithDir(dataDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = dataDir
	cfg.Crypto.Iterations = FastIterations
	cfg.Log = config.LogConfig{
		Level:  "debug",
		Format: "json",
		Color:  false,
	}
	return cfg
}

// LogOutput captures JSON log output for testing.
type LogOutput struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewLogOutput creates a new log output capturer.
func NewLogOutput() *LogOutput {
	return &LogOutput{}
}

// Write implements io.Writer to capture log output.
func (lo *LogOutput) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			lo.mu.Lock()
			lo.entries = append(lo.entries, entry)
			lo.mu.Unlock()
		}
	}
	return len(p), nil
}

// Entries returns captured log entries.
func (lo *LogOutput) Entries() []LogEntry {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	entries := make([]LogEntry, len(lo.entries))
	copy(entries, lo.entries)
	return entries
}

// HasMessage checks if any log entry contains the message.
func (lo *LogOutput) HasMessage(message string) bool {
	for _, entry := range lo.Entries() {
		if strings.Contains(entry.Message(), message) {
			return true
		}
	}
	return false
}

// HasField checks if any log entry carries key with value.
func (lo *LogOutput) HasField(key string, value interface{}) bool {
	for _, entry := range lo.Entries() {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Contains checks if any captured line mentions s.
func (lo *LogOutput) Contains(s string) bool {
	for _, entry := range lo.Entries() {
		data, _ := json.Marshal(entry)
		if strings.Contains(string(data), s) {
			return true
		}
	}
	return false
}

// WaitForCondition waits for a condition to be true with timeout.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

// SkipIfShort skips test if testing.Short() is true.
func SkipIfShort(t *testing.T, reason string) {
	if testing.Short() {
		t.Skipf("Skipping test in short mode: %s", reason)
	}
}
