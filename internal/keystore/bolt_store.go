package keystore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/TheMichaelB/syncvault/internal/events"
)

// credentialsBucket holds every key of a BoltStore.
var credentialsBucket = []byte("credentials")

// BoltStore implements Store on a bbolt database.
type BoltStore struct {
	db     *bolt.DB
	logger *events.Logger
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string, logger *events.Logger) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(credentialsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", credentialsBucket, err)
	}

	return &BoltStore{
		db:     db,
		logger: logger.WithField("component", "bolt_store"),
	}, nil
}

// Get retrieves a value.
func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(credentialsBucket).Get([]byte(key))
		if v == nil {
			return ErrKeyNotFound
		}
		// The slice is only valid during the transaction
		value = append([]byte{}, v...)
		return nil
	})
	return value, err
}

// Set stores a value.
func (s *BoltStore) Set(ctx context.Context, key string, value []byte) error {
	s.logger.WithField("key", key).Debug("Saving credential to bolt")

	if value == nil {
		value = []byte{}
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(credentialsBucket).Put([]byte(key), value)
	})
}

// Remove deletes a value.
func (s *BoltStore) Remove(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(credentialsBucket).Delete([]byte(key))
	})
}

// Keys returns all keys in byte order.
func (s *BoltStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(credentialsBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
