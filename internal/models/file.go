package models

import (
	"path/filepath"
	"strings"
)

// FileFingerprint describes one file on one side of a sync.
// ModTime is milliseconds since the Unix epoch.
type FileFingerprint struct {
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	ModTime     int64  `json:"mod_time"`
}

// NormalizedPath returns the cleaned, forward-slash path.
func (f FileFingerprint) NormalizedPath() string {
	return NormalizePath(f.Path)
}

// SameContent reports whether two fingerprints carry the same content hash.
func (f FileFingerprint) SameContent(other FileFingerprint) bool {
	return f.ContentHash == other.ContentHash
}

// NormalizePath cleans p and converts separators to forward slashes.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return filepath.ToSlash(filepath.Clean(p))
}

// CopyFileMap returns a copy of m that shares no storage with it.
func CopyFileMap(m map[string]FileFingerprint) map[string]FileFingerprint {
	out := make(map[string]FileFingerprint, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
