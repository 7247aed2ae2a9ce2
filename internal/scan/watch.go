package scan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TheMichaelB/syncvault/internal/models"
)

// DefaultDebounce groups bursts of file events into one rescan.
const DefaultDebounce = 250 * time.Millisecond

// Watch rescans the tree after file system changes and calls onChange with
// each new result. Events arriving within debounce of each other trigger a
// single rescan. Watch blocks until ctx is done or the watcher fails.
func (s *Scanner) Watch(ctx context.Context, debounce time.Duration, onChange func(map[string]models.FileFingerprint)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.addDirs(watcher, s.baseDir); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}

			// New directories must be watched explicitly
			if event.Has(fsnotify.Create) {
				_ = s.addDirs(watcher, event.Name)
			}

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			files, err := s.Scan(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.WithError(err).Warn("Rescan failed")
				continue
			}
			onChange(files)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", s.baseDir, err)
		}
	}
}

// addDirs watches root and every non-skipped directory below it.
func (s *Scanner) addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Vanished before we got to it
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != s.baseDir {
			rel, err := filepath.Rel(s.baseDir, p)
			if err != nil {
				return err
			}
			if s.Skip(models.NormalizePath(rel), true) {
				return filepath.SkipDir
			}
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", p, err)
		}
		return nil
	})
}

func (s *Scanner) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(s.baseDir, event.Name)
	if err != nil {
		return false
	}
	return !s.Skip(models.NormalizePath(rel), false)
}

func sortedKeys(m map[string]models.FileFingerprint) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
