package keystore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TheMichaelB/syncvault/internal/events"
)

// CurrentSchemaVersion of the file store document.
const CurrentSchemaVersion = 1

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	SchemaVersion int               `json:"schema_version"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Entries       map[string][]byte `json:"entries"`
	Checksum      string            `json:"checksum,omitempty"`
}

// FileStore keeps all keys in one JSON document, written atomically with a
// checksum and a backup of the previous version.
type FileStore struct {
	path   string
	logger *events.Logger

	mu sync.RWMutex
}

// NewFileStore creates a JSON file store at path.
func NewFileStore(path string, logger *events.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	return &FileStore{
		path:   path,
		logger: logger.WithField("component", "file_store"),
	}, nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

// Get reads key from the document.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	v, ok := doc.Entries[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return cloneBytes(v), nil
}

// Set writes key to the document.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	doc.Entries[key] = cloneBytes(value)
	return s.save(doc)
}

// Remove deletes key from the document.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Entries[key]; !ok {
		return nil
	}

	delete(doc.Entries, key)
	return s.save(doc)
}

// Keys lists every key in the document.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(doc.Entries))
	for k := range doc.Entries {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close releases resources.
func (s *FileStore) Close() error {
	return nil
}

// load reads the document, falling back to the backup when the main file is
// corrupt. A missing file is an empty document.
func (s *FileStore) load() (*fileDocument, error) {
	doc, err := s.readDocument(s.path)
	if os.IsNotExist(err) {
		return &fileDocument{SchemaVersion: CurrentSchemaVersion, Entries: make(map[string][]byte)}, nil
	}
	if err == nil {
		return doc, nil
	}

	if err != ErrStoreCorrupt {
		return nil, fmt.Errorf("read store file: %w", err)
	}

	s.logger.WithField("path", s.path).Error("Store checksum mismatch")

	backup, berr := s.readDocument(s.backupPath())
	if berr != nil {
		return nil, ErrStoreCorrupt
	}

	s.logger.Warn("Loaded store from backup due to corruption")
	return backup, nil
}

func (s *FileStore) readDocument(path string) (*fileDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ErrStoreCorrupt
	}

	// Every version written by save carries a checksum
	if doc.Checksum == "" && doc.SchemaVersion >= 1 {
		return nil, ErrStoreCorrupt
	}
	if doc.Checksum != "" {
		expected := doc.Checksum
		calculated, err := checksum(doc)
		if err != nil || calculated != expected {
			return nil, ErrStoreCorrupt
		}
	}

	if doc.SchemaVersion != CurrentSchemaVersion {
		s.logger.WithField("version", doc.SchemaVersion).Warn("Store schema version mismatch")
	}

	if doc.Entries == nil {
		doc.Entries = make(map[string][]byte)
	}
	return &doc, nil
}

func (s *FileStore) save(doc *fileDocument) error {
	doc.SchemaVersion = CurrentSchemaVersion
	doc.UpdatedAt = time.Now().UTC()

	sum, err := checksum(*doc)
	if err != nil {
		return fmt.Errorf("marshal store for checksum: %w", err)
	}
	doc.Checksum = sum

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	s.logger.WithField("entries", len(doc.Entries)).Debug("Saving store")

	// Create backup of existing file
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.backupPath()); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	// Write atomically
	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename store file: %w", err)
	}

	return nil
}

func (s *FileStore) backupPath() string {
	return s.path + ".backup"
}

// checksum hashes the document with the checksum field cleared.
func checksum(doc fileDocument) (string, error) {
	doc.Checksum = ""
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
