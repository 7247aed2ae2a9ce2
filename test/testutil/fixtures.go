package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/TheMichaelB/syncvault/internal/device"
	"github.com/TheMichaelB/syncvault/internal/events"
	"github.com/TheMichaelB/syncvault/internal/models"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// FastIterations keeps key derivation cheap in tests.
const FastIterations = 1000

// Laptop and Desktop are two distinct device profiles.
var (
	Laptop = device.StaticProvider{
		UserAgent:  "syncvault (linux; amd64; laptop)",
		Locale:     "en-US",
		ColorDepth: 24,
		Resolution: "1920x1080",
	}
	Desktop = device.StaticProvider{
		UserAgent:  "syncvault (windows; amd64; desktop)",
		Locale:     "de-DE",
		ColorDepth: 8,
		Resolution: "2560x1440",
	}
)

// MutableDevice is a signal provider whose signals can change mid-test.
type MutableDevice struct {
	S device.Signals
}

func (d *MutableDevice) Signals() device.Signals {
	return d.S
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// File builds a fingerprint for content modified at mtime.
func File(path, content string, mtime time.Time) models.FileFingerprint {
	return models.FileFingerprint{
		Path:        path,
		ContentHash: HashContent(content),
		ModTime:     mtime.UnixMilli(),
	}
}

// FileSet indexes fingerprints by path.
func FileSet(files ...models.FileFingerprint) map[string]models.FileFingerprint {
	m := make(map[string]models.FileFingerprint, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m
}
