package vault_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/syncvault/internal/crypto"
	"github.com/TheMichaelB/syncvault/internal/device"
	"github.com/TheMichaelB/syncvault/internal/events"
	"github.com/TheMichaelB/syncvault/internal/keystore"
	"github.com/TheMichaelB/syncvault/internal/models"
	"github.com/TheMichaelB/syncvault/internal/vault"
	"github.com/TheMichaelB/syncvault/test/testutil"
)

func newVault(durable, legacy keystore.Store, signals device.SignalProvider, opts ...vault.Option) *vault.Vault {
	base := []vault.Option{
		vault.WithIterations(testutil.FastIterations),
		vault.WithDeviceKeyIterations(testutil.FastIterations),
		vault.WithLogger(testutil.NewTestLogger()),
	}
	return vault.New(durable, legacy, signals, append(base, opts...)...)
}

func TestStoreAndGet(t *testing.T) {
	ctx := context.Background()
	durable := keystore.NewMemoryStore()
	legacy := keystore.NewMemoryStore()
	v := newVault(durable, legacy, testutil.Laptop)

	passwords := []string{
		"correct horse battery staple",
		"",
		"пароль-with-ünïcödé-🔑",
	}

	for _, pw := range passwords {
		require.NoError(t, v.StorePassword(ctx, pw))

		got, err := v.GetPassword(ctx)
		require.NoError(t, err)
		assert.Equal(t, pw, got)
	}

	t.Run("stored form is an encrypted blob", func(t *testing.T) {
		require.NoError(t, v.StorePassword(ctx, "needle-in-haystack"))

		data, err := durable.Get(ctx, keystore.KeyPassphrase)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "needle-in-haystack")

		blob, err := crypto.ParseBlob(data)
		require.NoError(t, err)
		assert.Equal(t, crypto.CurrentSchemaVersion, blob.SchemaVersion)
	})

	t.Run("salt is created once", func(t *testing.T) {
		salt1, err := durable.Get(ctx, keystore.KeyDeviceSalt)
		require.NoError(t, err)
		assert.Len(t, salt1, crypto.SaltSize)

		require.NoError(t, v.StorePassword(ctx, "again"))

		salt2, err := durable.Get(ctx, keystore.KeyDeviceSalt)
		require.NoError(t, err)
		assert.Equal(t, salt1, salt2)
	})

	t.Run("survives a new vault instance", func(t *testing.T) {
		require.NoError(t, v.StorePassword(ctx, "persisted"))

		other := newVault(durable, legacy, testutil.Laptop)
		got, err := other.GetPassword(ctx)
		require.NoError(t, err)
		assert.Equal(t, "persisted", got)
	})
}

func TestHasAndClear(t *testing.T) {
	ctx := context.Background()
	durable := keystore.NewMemoryStore()
	legacy := keystore.NewMemoryStore()
	v := newVault(durable, legacy, testutil.Laptop)

	ok, err := v.HasPassword(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.GetPassword(ctx)
	assert.ErrorIs(t, err, models.ErrCredentialNotFound)
	assert.Equal(t, models.KindCredentialNotFound, models.KindOf(err))

	require.NoError(t, v.StorePassword(ctx, "secret"))
	ok, err = v.HasPassword(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, legacy.Set(ctx, keystore.KeyLegacyPassphrase, []byte("old")))
	require.NoError(t, v.ClearPassword(ctx))

	ok, err = v.HasPassword(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, legacy.Len())

	_, err = v.GetPassword(ctx)
	assert.ErrorIs(t, err, models.ErrCredentialNotFound)

	t.Run("clearing an empty vault is a no-op", func(t *testing.T) {
		assert.NoError(t, v.ClearPassword(ctx))
		assert.NoError(t, v.ClearPassword(ctx))
	})
}

func TestLegacyMigration(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		stored []byte
		want   string
	}{
		{"raw value", []byte("correct horse"), "correct horse"},
		{"raw value that looks like base64", []byte("hunter22"), "hunter22"},
		{"base64 value", []byte(base64.StdEncoding.EncodeToString([]byte("correct horse battery"))), "correct horse battery"},
		// Raw values that are valid base64 of printable text read as decoded
		{"raw value indistinguishable from base64", []byte("Zm9vYmFy"), "foobar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			durable := keystore.NewMemoryStore()
			legacy := keystore.NewMemoryStore()
			require.NoError(t, legacy.Set(ctx, keystore.KeyLegacyPassphrase, tt.stored))

			v := newVault(durable, legacy, testutil.Laptop)

			ok, err := v.HasPassword(ctx)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 1, legacy.Len(), "HasPassword must not migrate")

			got, err := v.GetPassword(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			_, err = legacy.Get(ctx, keystore.KeyLegacyPassphrase)
			assert.ErrorIs(t, err, keystore.ErrKeyNotFound, "legacy entry removed")

			data, err := durable.Get(ctx, keystore.KeyPassphrase)
			require.NoError(t, err)
			assert.NotContains(t, string(data), tt.want)

			// Second read comes from encrypted storage
			got, err = v.GetPassword(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLegacyMigrationWriteFailure(t *testing.T) {
	ctx := context.Background()

	durable := testutil.NewMockStore()
	durable.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	durable.On("Set", mock.Anything, keystore.KeyDeviceSalt, mock.Anything).Return(nil)
	durable.On("Set", mock.Anything, keystore.KeyPassphrase, mock.Anything).Return(errors.New("disk full"))

	legacy := keystore.NewMemoryStore()
	require.NoError(t, legacy.Set(ctx, keystore.KeyLegacyPassphrase, []byte("legacy-secret")))

	v := newVault(durable, legacy, testutil.Laptop)

	got, err := v.GetPassword(ctx)
	assert.Equal(t, "legacy-secret", got, "read succeeds even if the migration write failed")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMigrationFailed)
	assert.Equal(t, models.KindMigration, models.KindOf(err))
	assert.True(t, models.IsRecoverable(err))

	value, err := legacy.Get(ctx, keystore.KeyLegacyPassphrase)
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy-secret"), value, "legacy entry untouched")

	_, stored := durable.Peek(keystore.KeyPassphrase)
	assert.False(t, stored)
	durable.AssertCalled(t, "Set", mock.Anything, keystore.KeyPassphrase, mock.Anything)
}

func TestDecryptionFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("different device", func(t *testing.T) {
		durable := keystore.NewMemoryStore()
		legacy := keystore.NewMemoryStore()

		require.NoError(t, newVault(durable, legacy, testutil.Laptop).StorePassword(ctx, "secret"))

		_, err := newVault(durable, legacy, testutil.Desktop).GetPassword(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrDecryptionFailed)
		assert.Equal(t, models.KindDecryption, models.KindOf(err))
	})

	t.Run("wiped salt", func(t *testing.T) {
		durable := keystore.NewMemoryStore()
		legacy := keystore.NewMemoryStore()
		v := newVault(durable, legacy, testutil.Laptop)

		require.NoError(t, v.StorePassword(ctx, "secret"))
		require.NoError(t, durable.Remove(ctx, keystore.KeyDeviceSalt))

		_, err := v.GetPassword(ctx)
		assert.ErrorIs(t, err, models.ErrDecryptionFailed)
		assert.Equal(t, models.KindDecryption, models.KindOf(err))

		_, err = durable.Get(ctx, keystore.KeyDeviceSalt)
		assert.ErrorIs(t, err, keystore.ErrKeyNotFound, "a read must not create a salt")

		// Storing again starts over with a fresh salt
		require.NoError(t, v.StorePassword(ctx, "replacement"))
		got, err := v.GetPassword(ctx)
		require.NoError(t, err)
		assert.Equal(t, "replacement", got)
	})

	corrupt := map[string]func(*testing.T, []byte) []byte{
		"garbage": func(*testing.T, []byte) []byte { return []byte("not a blob") },
		"flipped ciphertext": func(t *testing.T, data []byte) []byte {
			blob, err := crypto.ParseBlob(data)
			require.NoError(t, err)
			blob.Ciphertext[0] ^= 0xff
			out, err := crypto.MarshalBlob(blob)
			require.NoError(t, err)
			return out
		},
		"future schema": func(t *testing.T, data []byte) []byte {
			blob, err := crypto.ParseBlob(data)
			require.NoError(t, err)
			blob.SchemaVersion = 99
			out, err := crypto.MarshalBlob(blob)
			require.NoError(t, err)
			return out
		},
	}

	var messages []string
	for name, mutate := range corrupt {
		t.Run(name, func(t *testing.T) {
			durable := keystore.NewMemoryStore()
			v := newVault(durable, keystore.NewMemoryStore(), testutil.Laptop)
			require.NoError(t, v.StorePassword(ctx, "secret"))

			data, err := durable.Get(ctx, keystore.KeyPassphrase)
			require.NoError(t, err)
			require.NoError(t, durable.Set(ctx, keystore.KeyPassphrase, mutate(t, data)))

			got, err := v.GetPassword(ctx)
			assert.Empty(t, got)
			assert.ErrorIs(t, err, models.ErrDecryptionFailed)
			messages = append(messages, err.Error())
		})
	}

	t.Run("message does not reveal the cause", func(t *testing.T) {
		require.NotEmpty(t, messages)
		for _, m := range messages {
			assert.Equal(t, messages[0], m)
		}
	})
}

func TestSameDeviceAcrossTerminalSessions(t *testing.T) {
	ctx := context.Background()
	durable := keystore.NewMemoryStore()
	legacy := keystore.NewMemoryStore()
	hostname := func() (string, error) { return "box", nil }

	session := func(env map[string]string) device.SignalProvider {
		return device.NewHostProviderWith(func(k string) string { return env[k] }, hostname)
	}

	stored := newVault(durable, legacy, session(map[string]string{"LANG": "en_US.UTF-8", "TERM": "xterm-256color"}))
	require.NoError(t, stored.StorePassword(ctx, "pw"))

	others := map[string]map[string]string{
		"no terminal": {"LANG": "en_US.UTF-8"},
		"tmux":        {"LANG": "en_US.UTF-8", "TERM": "screen-256color"},
		"truecolor":   {"LANG": "en_US.UTF-8", "TERM": "xterm", "COLORTERM": "truecolor"},
	}
	for name, env := range others {
		t.Run(name, func(t *testing.T) {
			got, err := newVault(durable, legacy, session(env)).GetPassword(ctx)
			require.NoError(t, err)
			assert.Equal(t, "pw", got)
		})
	}
}

func TestStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	ioErr := errors.New("device not ready")

	t.Run("durable read fails", func(t *testing.T) {
		durable := testutil.NewMockStore()
		durable.On("Get", mock.Anything, mock.Anything).Return(nil, ioErr)

		v := newVault(durable, keystore.NewMemoryStore(), testutil.Laptop)

		_, err := v.GetPassword(ctx)
		assert.ErrorIs(t, err, models.ErrStorageUnavailable)
		assert.ErrorIs(t, err, ioErr)
		assert.False(t, models.IsRecoverable(err))

		_, err = v.HasPassword(ctx)
		assert.ErrorIs(t, err, models.ErrStorageUnavailable)

		err = v.StorePassword(ctx, "secret")
		assert.ErrorIs(t, err, models.ErrStorageUnavailable)
	})

	t.Run("remove fails", func(t *testing.T) {
		durable := testutil.NewMockStore()
		durable.On("Remove", mock.Anything, keystore.KeyPassphrase).Return(ioErr)
		legacy := keystore.NewMemoryStore()
		require.NoError(t, legacy.Set(ctx, keystore.KeyLegacyPassphrase, []byte("old")))

		v := newVault(durable, legacy, testutil.Laptop)

		err := v.ClearPassword(ctx)
		assert.ErrorIs(t, err, models.ErrStorageUnavailable)
		assert.Equal(t, 0, legacy.Len(), "legacy location is still cleared")
	})

	t.Run("encryption fails", func(t *testing.T) {
		provider := testutil.NewMockCryptoProvider()
		provider.On("Encrypt", "secret", mock.Anything).Return(nil, errors.New("entropy exhausted"))

		v := newVault(keystore.NewMemoryStore(), keystore.NewMemoryStore(), testutil.Laptop, vault.WithProvider(provider))

		err := v.StorePassword(ctx, "secret")
		assert.ErrorIs(t, err, models.ErrStorageUnavailable)
		provider.AssertExpectations(t)
	})
}

func TestDeviceKeyCache(t *testing.T) {
	ctx := context.Background()
	durable := keystore.NewMemoryStore()
	legacy := keystore.NewMemoryStore()
	cache := vault.NewKeyCache()
	dev := &testutil.MutableDevice{S: device.Signals(testutil.Laptop)}

	v := newVault(durable, legacy, dev, vault.WithKeyCache(cache))

	require.NoError(t, v.StorePassword(ctx, "secret"))
	_, err := v.GetPassword(ctx)
	require.NoError(t, err)
	_, err = v.GetPassword(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Derivations(), "device key is derived once")

	t.Run("explicit invalidation", func(t *testing.T) {
		before := cache.Derivations()
		v.ClearDeviceKeyCache()

		got, err := v.GetPassword(ctx)
		require.NoError(t, err)
		assert.Equal(t, "secret", got, "recomputed key is identical")
		assert.Equal(t, before+1, cache.Derivations())
	})

	t.Run("salt change recomputes", func(t *testing.T) {
		before := cache.Derivations()
		require.NoError(t, durable.Remove(ctx, keystore.KeyDeviceSalt))

		require.NoError(t, v.StorePassword(ctx, "secret"))
		assert.Equal(t, before+1, cache.Derivations())

		got, err := v.GetPassword(ctx)
		require.NoError(t, err)
		assert.Equal(t, "secret", got)
	})

	t.Run("fingerprint change recomputes", func(t *testing.T) {
		before := cache.Derivations()
		dev.S.Resolution = "800x600"

		_, err := v.GetPassword(ctx)
		assert.ErrorIs(t, err, models.ErrDecryptionFailed)
		assert.Equal(t, before+1, cache.Derivations())

		dev.S.Resolution = testutil.Laptop.Resolution
		got, err := v.GetPassword(ctx)
		require.NoError(t, err)
		assert.Equal(t, "secret", got)
	})
}

func TestKeyCacheDeterminism(t *testing.T) {
	cache := vault.NewKeyCache()
	fp := device.Compute(device.Signals(testutil.Laptop))
	salt := []byte("0123456789abcdef0123456789abcdef")

	derive := func() ([]byte, error) {
		return crypto.DeriveKey([]byte(fp), salt, crypto.PBKDF2Params(testutil.FastIterations))
	}

	k1, err := cache.Get(fp, salt, derive)
	require.NoError(t, err)
	k2, err := cache.Get(fp, salt, derive)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, cache.Derivations())

	fresh, err := derive()
	require.NoError(t, err)
	assert.Equal(t, fresh, k1, "cached key equals a fresh derivation")

	k1[0] ^= 0xff
	k3, err := cache.Get(fp, salt, derive)
	require.NoError(t, err)
	assert.Equal(t, fresh, k3, "callers cannot mutate the cached key")

	t.Run("derive error is not cached", func(t *testing.T) {
		cache.Clear()
		_, err := cache.Get(fp, salt, func() ([]byte, error) { return nil, errors.New("boom") })
		assert.Error(t, err)

		k, err := cache.Get(fp, salt, derive)
		require.NoError(t, err)
		assert.Equal(t, fresh, k)
	})
}

func TestParameterUpgrade(t *testing.T) {
	ctx := context.Background()
	durable := keystore.NewMemoryStore()
	legacy := keystore.NewMemoryStore()

	require.NoError(t, newVault(durable, legacy, testutil.Laptop).StorePassword(ctx, "secret"))

	stronger := newVault(durable, legacy, testutil.Laptop, vault.WithIterations(2*testutil.FastIterations))
	got, err := stronger.GetPassword(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	data, err := durable.Get(ctx, keystore.KeyPassphrase)
	require.NoError(t, err)
	blob, err := crypto.ParseBlob(data)
	require.NoError(t, err)
	assert.Equal(t, 2*testutil.FastIterations, blob.KDF.Iterations)
}

func TestLogsNeverContainSecrets(t *testing.T) {
	ctx := context.Background()
	out := testutil.NewLogOutput()
	logger := events.NewTestLogger(events.DebugLevel, "json", out)

	durable := keystore.NewMemoryStore()
	legacy := keystore.NewMemoryStore()
	require.NoError(t, legacy.Set(ctx, keystore.KeyLegacyPassphrase, []byte("super-secret-value")))

	v := newVault(durable, legacy, testutil.Laptop, vault.WithLogger(logger))
	_, err := v.GetPassword(ctx)
	require.NoError(t, err)

	require.NoError(t, durable.Set(ctx, keystore.KeyPassphrase, []byte("garbage")))
	_, err = v.GetPassword(ctx)
	require.Error(t, err)

	assert.NotEmpty(t, out.Entries())
	assert.True(t, out.HasMessage("Migrated legacy passphrase"))
	assert.True(t, out.HasField("component", "vault"))
	assert.False(t, out.Contains("super-secret-value"))
}
