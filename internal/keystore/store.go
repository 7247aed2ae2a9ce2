package keystore

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Store is a small key-value capability. Get returns ErrKeyNotFound when the
// key is absent; every other error is an I/O-level failure.
type Store interface {
	// Get retrieves the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Errors
var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrStoreCorrupt = errors.New("store file is corrupt")
)

// Logical key names shared by every backend.
const (
	KeyPassphrase       = "sync_passphrase"
	KeyLegacyPassphrase = "sync_password"
	KeyDeviceSalt       = "device_salt"
)

// Has reports whether key is present in s.
func Has(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Migrate copies every key of src into dst. Keys already in dst are
// overwritten; src is left untouched.
func Migrate(ctx context.Context, src, dst Store) ([]string, error) {
	lister, ok := src.(Lister)
	if !ok {
		return nil, fmt.Errorf("source store %T cannot list keys", src)
	}

	keys, err := lister.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	sort.Strings(keys)

	var copied []string
	for _, key := range keys {
		value, err := src.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return copied, fmt.Errorf("read %s: %w", key, err)
		}
		if err := dst.Set(ctx, key, value); err != nil {
			return copied, fmt.Errorf("write %s: %w", key, err)
		}
		copied = append(copied, key)
	}

	return copied, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
