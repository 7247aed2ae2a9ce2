package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/syncvault/internal/crypto"
	"github.com/TheMichaelB/syncvault/internal/keystore"
)

// MockStore mocks a keystore.Store. Calls are recorded through mock.Mock;
// when an expectation returns no value for Get the in-memory data is used.
type MockStore struct {
	mock.Mock
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	if v := args.Get(0); v != nil {
		return v.([]byte), nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, keystore.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	if err := args.Error(0); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	if err := args.Error(0); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

// Put seeds a value without recording a call.
func (m *MockStore) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

// Peek reads a value without recording a call.
func (m *MockStore) Peek(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

var _ keystore.Store = (*MockStore)(nil)

// MockCryptoProvider mocks the encryption service.
type MockCryptoProvider struct {
	mock.Mock
}

func NewMockCryptoProvider() *MockCryptoProvider {
	return &MockCryptoProvider{}
}

func (m *MockCryptoProvider) Encrypt(value any, passphrase string) (*crypto.EncryptedBlob, error) {
	args := m.Called(value, passphrase)
	if blob := args.Get(0); blob != nil {
		return blob.(*crypto.EncryptedBlob), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCryptoProvider) Decrypt(blob *crypto.EncryptedBlob, passphrase string, out any) error {
	args := m.Called(blob, passphrase, out)
	return args.Error(0)
}

func (m *MockCryptoProvider) NeedsUpgrade(blob *crypto.EncryptedBlob) bool {
	args := m.Called(blob)
	return args.Bool(0)
}

var _ crypto.Provider = (*MockCryptoProvider)(nil)
