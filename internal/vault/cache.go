package vault

import (
	"bytes"
	"sync"

	"github.com/TheMichaelB/syncvault/internal/crypto"
	"github.com/TheMichaelB/syncvault/internal/device"
)

// KeyCache memoizes the device key for one (fingerprint, salt) pair. A
// lookup with any other pair recomputes and replaces the entry.
type KeyCache struct {
	mu          sync.Mutex
	fingerprint device.Fingerprint
	salt        []byte
	key         []byte
	derivations int
}

// NewKeyCache creates an empty cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{}
}

// Get returns the cached key for (fp, salt), calling derive on a miss.
func (c *KeyCache) Get(fp device.Fingerprint, salt []byte, derive func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != nil && c.fingerprint == fp && bytes.Equal(c.salt, salt) {
		return append([]byte(nil), c.key...), nil
	}

	key, err := derive()
	if err != nil {
		return nil, err
	}
	c.derivations++

	c.reset()
	c.fingerprint = fp
	c.salt = append([]byte(nil), salt...)
	c.key = append([]byte(nil), key...)

	return key, nil
}

// Clear drops the memoized key.
func (c *KeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Derivations returns how many times a key has been computed.
func (c *KeyCache) Derivations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.derivations
}

func (c *KeyCache) reset() {
	crypto.ClearBytes(c.key)
	c.key = nil
	c.salt = nil
	c.fingerprint = ""
}
