package diff

import (
	"sync"
	"time"

	"github.com/TheMichaelB/syncvault/internal/events"
	"github.com/TheMichaelB/syncvault/internal/models"
)

// DefaultHistorySize is the number of snapshots kept by default.
const DefaultHistorySize = 10

// Engine classifies local/server file sets and keeps a bounded history of
// the results. Snapshots handed out are copies; the history cannot be
// changed from outside.
type Engine struct {
	mu      sync.Mutex
	history []*models.SyncSnapshot // ring buffer
	start   int
	size    int

	now    func() time.Time
	logger *events.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistorySize sets the history capacity. Values below one keep the
// default.
func WithHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.history = make([]*models.SyncSnapshot, n)
		}
	}
}

// WithClock replaces the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *events.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine with an empty history.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		history: make([]*models.SyncSnapshot, DefaultHistorySize),
		now:     time.Now,
		logger:  events.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithField("component", "diff_engine")
	return e
}

// CaptureSnapshot copies both inputs, classifies them and appends the
// result to the history, evicting the oldest snapshot when full.
func (e *Engine) CaptureSnapshot(local, server map[string]models.FileFingerprint) *models.SyncSnapshot {
	snap := &models.SyncSnapshot{
		LocalFiles:  models.CopyFileMap(local),
		ServerFiles: models.CopyFileMap(server),
	}
	snap.Differences = Classify(snap.LocalFiles, snap.ServerFiles)

	e.mu.Lock()
	snap.Timestamp = e.now()
	e.push(snap)
	e.mu.Unlock()

	e.logger.WithFields(map[string]interface{}{
		"local":       len(snap.LocalFiles),
		"server":      len(snap.ServerFiles),
		"local_only":  len(snap.Differences.LocalOnly),
		"server_only": len(snap.Differences.ServerOnly),
		"modified":    len(snap.Differences.Modified),
		"conflicts":   len(snap.Differences.Conflicts),
	}).Debug("Captured sync snapshot")

	if snap.HasConflicts() {
		e.logger.WithField("paths", snap.Differences.Conflicts).Warn("Conflicting changes detected")
	}

	return snap.Clone()
}

// LatestSnapshot returns the most recent snapshot.
func (e *Engine) LatestSnapshot() (*models.SyncSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.size == 0 {
		return nil, false
	}
	return e.at(e.size - 1).Clone(), true
}

// AllSnapshots returns the history, oldest first.
func (e *Engine) AllSnapshots() []*models.SyncSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.SyncSnapshot, 0, e.size)
	for i := 0; i < e.size; i++ {
		out = append(out, e.at(i).Clone())
	}
	return out
}

// Len returns the number of snapshots held.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.size
}

// Capacity returns the maximum number of snapshots held.
func (e *Engine) Capacity() int {
	return len(e.history)
}

// Clear empties the history.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.history {
		e.history[i] = nil
	}
	e.start = 0
	e.size = 0
}

func (e *Engine) push(s *models.SyncSnapshot) {
	capacity := len(e.history)
	if e.size < capacity {
		e.history[(e.start+e.size)%capacity] = s
		e.size++
		return
	}
	e.history[e.start] = s
	e.start = (e.start + 1) % capacity
}

// at returns the i-th snapshot counting from the oldest.
func (e *Engine) at(i int) *models.SyncSnapshot {
	return e.history[(e.start+i)%len(e.history)]
}
