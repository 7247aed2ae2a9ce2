package keystore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/TheMichaelB/syncvault/internal/events"
)

// DefaultKeyringService is the OS keyring service name.
const DefaultKeyringService = "syncvault"

// KeyringStore implements Store on the operating system keyring. Values are
// base64 encoded since keyrings hold strings. The keyring cannot enumerate
// entries, so KeyringStore is not a Lister.
type KeyringStore struct {
	service string
	logger  *events.Logger
}

// NewKeyringStore creates a store under the given service name.
func NewKeyringStore(service string, logger *events.Logger) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{
		service: service,
		logger:  logger.WithField("component", "keyring_store"),
	}
}

// Get retrieves a value from the keyring.
func (s *KeyringStore) Get(ctx context.Context, key string) ([]byte, error) {
	encoded, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get %s: %w", key, err)
	}

	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("keyring entry %s: %w", key, ErrStoreCorrupt)
	}
	return value, nil
}

// Set stores a value in the keyring.
func (s *KeyringStore) Set(ctx context.Context, key string, value []byte) error {
	s.logger.WithField("key", key).Debug("Saving credential to keyring")

	if err := keyring.Set(s.service, key, base64.StdEncoding.EncodeToString(value)); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	return nil
}

// Remove deletes a value from the keyring.
func (s *KeyringStore) Remove(ctx context.Context, key string) error {
	err := keyring.Delete(s.service, key)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("keyring delete %s: %w", key, err)
}

// Close releases resources.
func (s *KeyringStore) Close() error {
	return nil
}
