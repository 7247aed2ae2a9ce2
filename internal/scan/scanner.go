package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/TheMichaelB/syncvault/internal/config"
	"github.com/TheMichaelB/syncvault/internal/events"
	"github.com/TheMichaelB/syncvault/internal/models"
)

// Scanner builds file fingerprints for a local directory tree.
type Scanner struct {
	baseDir       string
	includeHidden bool
	ignore        []string
	logger        *events.Logger

	// Security settings
	allowSymlinks bool
	maxFileSize   int64
}

// NewScanner creates a scanner rooted at baseDir.
func NewScanner(baseDir string, cfg config.DiffConfig, logger *events.Logger) (*Scanner, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absPath)
	}

	for _, pattern := range cfg.Ignore {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
	}

	return &Scanner{
		baseDir:       absPath,
		includeHidden: cfg.IncludeHidden,
		ignore:        cfg.Ignore,
		logger:        logger.WithField("component", "scanner"),
		allowSymlinks: false,
		maxFileSize:   100 * 1024 * 1024, // 100MB default
	}, nil
}

// SetMaxFileSize sets the maximum file size hashed; larger files are skipped.
func (s *Scanner) SetMaxFileSize(size int64) {
	s.maxFileSize = size
}

// BaseDir returns the absolute scan root.
func (s *Scanner) BaseDir() string {
	return s.baseDir
}

// Scan walks the tree and returns fingerprints keyed by forward-slash
// relative path.
func (s *Scanner) Scan(ctx context.Context) (map[string]models.FileFingerprint, error) {
	files := make(map[string]models.FileFingerprint)
	skipped := 0

	err := filepath.WalkDir(s.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p == s.baseDir {
			return nil
		}

		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		rel = models.NormalizePath(rel)

		if d.IsDir() {
			if s.Skip(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.Skip(rel, false) {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !s.allowSymlinks {
			s.logger.WithField("path", rel).Debug("Skipping symlink")
			skipped++
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fp, err := s.fingerprint(p, rel)
		if err != nil {
			return err
		}
		if fp == nil {
			skipped++
			return nil
		}

		files[rel] = *fp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.baseDir, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"files":   len(files),
		"skipped": skipped,
	}).Debug("Scanned directory")

	return files, nil
}

// Skip reports whether a relative path is excluded by the hidden-entry rule
// or an ignore pattern. Patterns match the full relative path or the base
// name.
func (s *Scanner) Skip(rel string, isDir bool) bool {
	base := path.Base(rel)

	if !s.includeHidden && strings.HasPrefix(base, ".") {
		return true
	}

	for _, pattern := range s.ignore {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
		if isDir {
			if ok, _ := path.Match(strings.TrimSuffix(pattern, "/"), rel); ok {
				return true
			}
		}
	}
	return false
}

func (s *Scanner) fingerprint(absPath, rel string) (*models.FileFingerprint, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}

	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		s.logger.WithFields(map[string]interface{}{
			"path": rel,
			"size": info.Size(),
		}).Warn("Skipping file over size limit")
		return nil, nil
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return nil, fmt.Errorf("hash %s: %w", rel, err)
	}

	return &models.FileFingerprint{
		Path:        rel,
		ContentHash: hex.EncodeToString(hash.Sum(nil)),
		ModTime:     info.ModTime().UnixMilli(),
	}, nil
}
