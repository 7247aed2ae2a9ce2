package models

import (
	"time"
)

// Differences groups paths by how the local and server sides disagree.
// Each slice is sorted and never nil.
type Differences struct {
	LocalOnly  []string `json:"local_only"`
	ServerOnly []string `json:"server_only"`
	Modified   []string `json:"modified"`
	Conflicts  []string `json:"conflicts"`
}

// NewDifferences returns an empty classification.
func NewDifferences() Differences {
	return Differences{
		LocalOnly:  []string{},
		ServerOnly: []string{},
		Modified:   []string{},
		Conflicts:  []string{},
	}
}

// IsEmpty reports whether both sides agree on every path.
func (d Differences) IsEmpty() bool {
	return d.Count() == 0
}

// Count returns the total number of classified paths.
func (d Differences) Count() int {
	return len(d.LocalOnly) + len(d.ServerOnly) + len(d.Modified) + len(d.Conflicts)
}

// Clone creates a deep copy of the classification.
func (d Differences) Clone() Differences {
	return Differences{
		LocalOnly:  append([]string{}, d.LocalOnly...),
		ServerOnly: append([]string{}, d.ServerOnly...),
		Modified:   append([]string{}, d.Modified...),
		Conflicts:  append([]string{}, d.Conflicts...),
	}
}

// SyncSnapshot is an immutable record of one local/server comparison.
type SyncSnapshot struct {
	Timestamp   time.Time                  `json:"timestamp"`
	LocalFiles  map[string]FileFingerprint `json:"local_files"`
	ServerFiles map[string]FileFingerprint `json:"server_files"`
	Differences Differences                `json:"differences"`
}

// HasConflicts reports whether any path could not be ordered by mod time.
func (s *SyncSnapshot) HasConflicts() bool {
	return len(s.Differences.Conflicts) > 0
}

// Clone creates a deep copy of the snapshot.
func (s *SyncSnapshot) Clone() *SyncSnapshot {
	return &SyncSnapshot{
		Timestamp:   s.Timestamp,
		LocalFiles:  CopyFileMap(s.LocalFiles),
		ServerFiles: CopyFileMap(s.ServerFiles),
		Differences: s.Differences.Clone(),
	}
}
