package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/syncvault/internal/crypto"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestSecurityRequirements(t *testing.T) {
	t.Run("key derivation uses sufficient iterations", func(t *testing.T) {
		assert.GreaterOrEqual(t, crypto.DefaultIterations, 600000)
		assert.Equal(t, crypto.DefaultIterations, crypto.NewProvider().Params().Iterations)
	})

	t.Run("key size is 256 bits", func(t *testing.T) {
		assert.Equal(t, 32, crypto.KeySize)
	})

	t.Run("encryption is non-deterministic", func(t *testing.T) {
		provider := fastProvider()

		blob1, err := provider.Encrypt("same value", "same passphrase")
		require.NoError(t, err)
		blob2, err := provider.Encrypt("same value", "same passphrase")
		require.NoError(t, err)

		assert.NotEqual(t, blob1.Nonce, blob2.Nonce)
		assert.NotEqual(t, blob1.Salt, blob2.Salt)
		assert.NotEqual(t, blob1.Ciphertext, blob2.Ciphertext)

		// But both should decrypt to same plaintext
		var out1, out2 string
		require.NoError(t, provider.Decrypt(blob1, "same passphrase", &out1))
		require.NoError(t, provider.Decrypt(blob2, "same passphrase", &out2))
		assert.Equal(t, "same value", out1)
		assert.Equal(t, "same value", out2)
	})

	t.Run("plaintext does not appear in blob", func(t *testing.T) {
		blob, err := fastProvider().Encrypt("needle-in-haystack", "pw")
		require.NoError(t, err)

		data, err := crypto.MarshalBlob(blob)
		require.NoError(t, err)
		assert.False(t, bytes.Contains(data, []byte("needle-in-haystack")))
	})

	t.Run("randomness failure is reported", func(t *testing.T) {
		provider := crypto.NewProvider(crypto.WithIterations(1000), crypto.WithRandom(failingReader{}))
		_, err := provider.Encrypt("value", "pw")
		assert.ErrorContains(t, err, "entropy exhausted")
	})

	t.Run("injected randomness is used", func(t *testing.T) {
		fixed := bytes.Repeat([]byte{0x42}, crypto.SaltSize+crypto.NonceSize)
		provider := crypto.NewProvider(crypto.WithIterations(1000), crypto.WithRandom(bytes.NewReader(fixed)))

		blob, err := provider.Encrypt("value", "pw")
		require.NoError(t, err)
		assert.Equal(t, fixed[:crypto.SaltSize], blob.Salt)
		assert.Equal(t, fixed[crypto.SaltSize:], blob.Nonce)
	})
}
