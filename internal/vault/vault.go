package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"

	"github.com/TheMichaelB/syncvault/internal/crypto"
	"github.com/TheMichaelB/syncvault/internal/device"
	"github.com/TheMichaelB/syncvault/internal/events"
	"github.com/TheMichaelB/syncvault/internal/keystore"
	"github.com/TheMichaelB/syncvault/internal/models"
)

var errNoSalt = errors.New("device salt not found")

// Vault stores exactly one secret, the sync passphrase, encrypted under a
// key bound to the device fingerprint and a per-installation salt.
//
// Operations are not safe to overlap: GetPassword may read the legacy slot,
// re-store it and delete it without a compare-and-swap.
type Vault struct {
	durable keystore.Store
	legacy  keystore.Store
	signals device.SignalProvider

	provider         crypto.Provider
	cache            *KeyCache
	random           io.Reader
	iterations       int
	deviceIterations int
	logger           *events.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithKeyCache shares a key cache between vaults.
func WithKeyCache(c *KeyCache) Option {
	return func(v *Vault) {
		v.cache = c
	}
}

// WithRandom replaces the randomness source for salts and nonces.
func WithRandom(r io.Reader) Option {
	return func(v *Vault) {
		v.random = r
	}
}

// WithIterations sets the PBKDF2 cost of new blobs. Existing blobs with a
// lower cost are re-encrypted on read.
func WithIterations(n int) Option {
	return func(v *Vault) {
		v.iterations = n
	}
}

// WithDeviceKeyIterations sets the PBKDF2 cost of the device key. Changing it
// makes previously stored blobs unreadable.
func WithDeviceKeyIterations(n int) Option {
	return func(v *Vault) {
		v.deviceIterations = n
	}
}

// WithProvider replaces the encryption service.
func WithProvider(p crypto.Provider) Option {
	return func(v *Vault) {
		v.provider = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *events.Logger) Option {
	return func(v *Vault) {
		v.logger = l
	}
}

// New creates a vault over a durable store and the legacy plaintext store.
func New(durable, legacy keystore.Store, signals device.SignalProvider, opts ...Option) *Vault {
	v := &Vault{
		durable:          durable,
		legacy:           legacy,
		signals:          signals,
		random:           rand.Reader,
		iterations:       crypto.DefaultIterations,
		deviceIterations: crypto.DefaultIterations,
		logger:           events.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.cache == nil {
		v.cache = NewKeyCache()
	}
	if v.provider == nil {
		v.provider = crypto.NewProvider(crypto.WithIterations(v.iterations), crypto.WithRandom(v.random))
	}
	v.logger = v.logger.WithField("component", "vault")

	return v
}

// StorePassword encrypts password and writes it to the durable store.
func (v *Vault) StorePassword(ctx context.Context, password string) error {
	if err := v.store(ctx, password); err != nil {
		return v.fail("store", err)
	}
	v.logger.Debug("Stored sync passphrase")
	return nil
}

// GetPassword returns the stored passphrase. A value found only in the
// legacy location is migrated to encrypted storage; if that write fails the
// value is still returned alongside a migration error and the legacy entry
// is left in place.
func (v *Vault) GetPassword(ctx context.Context) (string, error) {
	data, err := v.durable.Get(ctx, keystore.KeyPassphrase)
	switch {
	case err == nil:
		return v.open(ctx, data)
	case errors.Is(err, keystore.ErrKeyNotFound):
		return v.migrateLegacy(ctx)
	default:
		return "", v.fail("get", models.NewVaultError(models.KindStorageUnavailable, "get", err))
	}
}

// HasPassword reports whether either location holds a value. It never
// migrates.
func (v *Vault) HasPassword(ctx context.Context) (bool, error) {
	for _, slot := range []struct {
		store keystore.Store
		key   string
	}{
		{v.durable, keystore.KeyPassphrase},
		{v.legacy, keystore.KeyLegacyPassphrase},
	} {
		ok, err := keystore.Has(ctx, slot.store, slot.key)
		if err != nil {
			return false, v.fail("has", models.NewVaultError(models.KindStorageUnavailable, "has", err))
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ClearPassword removes the passphrase from both locations. Clearing an
// empty vault succeeds.
func (v *Vault) ClearPassword(ctx context.Context) error {
	var errs []error
	if err := v.durable.Remove(ctx, keystore.KeyPassphrase); err != nil {
		errs = append(errs, err)
	}
	if err := v.legacy.Remove(ctx, keystore.KeyLegacyPassphrase); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return v.fail("clear", models.NewVaultError(models.KindStorageUnavailable, "clear", errors.Join(errs...)))
	}

	v.logger.Info("Cleared sync passphrase")
	return nil
}

// ClearDeviceKeyCache drops the memoized device key.
func (v *Vault) ClearDeviceKeyCache() {
	v.cache.Clear()
}

// Fingerprint returns the current device fingerprint.
func (v *Vault) Fingerprint() device.Fingerprint {
	return device.Compute(v.signals.Signals())
}

func (v *Vault) store(ctx context.Context, password string) error {
	key, err := v.deviceKey(ctx, true)
	if err != nil {
		return err
	}

	blob, err := v.provider.Encrypt(password, key)
	if err != nil {
		return models.NewVaultError(models.KindStorageUnavailable, "encrypt", err)
	}

	data, err := crypto.MarshalBlob(blob)
	if err != nil {
		return models.NewVaultError(models.KindStorageUnavailable, "encode", err)
	}

	if err := v.durable.Set(ctx, keystore.KeyPassphrase, data); err != nil {
		return models.NewVaultError(models.KindStorageUnavailable, "store", err)
	}
	return nil
}

func (v *Vault) open(ctx context.Context, data []byte) (string, error) {
	blob, err := crypto.ParseBlob(data)
	if err != nil {
		v.logger.WithField("reason", crypto.ReasonOf(err)).Debug("Stored blob rejected")
		return "", v.fail("get", models.NewVaultError(models.KindDecryption, "get", crypto.ErrDecryptionFailed))
	}

	// A blob without its salt can never be opened again; reading must not
	// replace the missing salt.
	key, err := v.deviceKey(ctx, false)
	if errors.Is(err, errNoSalt) {
		v.logger.WithField("reason", "missing_salt").Debug("Stored blob rejected")
		return "", v.fail("get", models.NewVaultError(models.KindDecryption, "get", crypto.ErrDecryptionFailed))
	}
	if err != nil {
		return "", v.fail("get", err)
	}

	var password string
	if err := v.provider.Decrypt(blob, key, &password); err != nil {
		v.logger.WithField("reason", crypto.ReasonOf(err)).Debug("Stored blob rejected")
		return "", v.fail("get", models.NewVaultError(models.KindDecryption, "get", crypto.ErrDecryptionFailed))
	}

	if v.provider.NeedsUpgrade(blob) {
		if err := v.store(ctx, password); err != nil {
			v.logger.WithError(err).Warn("Failed to upgrade stored passphrase parameters")
		} else {
			v.logger.Info("Upgraded stored passphrase parameters")
		}
	}

	return password, nil
}

func (v *Vault) migrateLegacy(ctx context.Context) (string, error) {
	raw, err := v.legacy.Get(ctx, keystore.KeyLegacyPassphrase)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		return "", models.NewVaultError(models.KindCredentialNotFound, "get", nil)
	}
	if err != nil {
		return "", v.fail("get", models.NewVaultError(models.KindStorageUnavailable, "get", err))
	}

	password := decodeLegacy(raw)
	logger := v.logger.WithField("op", "migrate")

	if err := v.store(ctx, password); err != nil {
		logger.WithError(err).Warn("Legacy passphrase kept; encrypted write failed")
		return password, models.NewVaultError(models.KindMigration, "migrate", err)
	}

	if err := v.legacy.Remove(ctx, keystore.KeyLegacyPassphrase); err != nil {
		// The encrypted copy is in place and is read first from now on.
		logger.WithError(err).Warn("Failed to delete legacy passphrase")
	}

	logger.Info("Migrated legacy passphrase to encrypted storage")
	return password, nil
}

// deviceKey returns the hex-encoded PBKDF2 key for the current fingerprint
// and installation salt. The salt is created only when create is set.
func (v *Vault) deviceKey(ctx context.Context, create bool) (string, error) {
	salt, err := v.salt(ctx, create)
	if err != nil {
		return "", err
	}

	fp := v.Fingerprint()
	key, err := v.cache.Get(fp, salt, func() ([]byte, error) {
		v.logger.WithField("fingerprint", fp.Short()).Debug("Deriving device key")
		return crypto.DeriveKey([]byte(fp), salt, crypto.PBKDF2Params(v.deviceIterations))
	})
	if err != nil {
		return "", models.NewVaultError(models.KindStorageUnavailable, "derive", err)
	}
	defer crypto.ClearBytes(key)

	return hex.EncodeToString(key), nil
}

// salt loads the installation salt. When it is absent it is created if
// create is set, otherwise errNoSalt is returned.
func (v *Vault) salt(ctx context.Context, create bool) ([]byte, error) {
	salt, err := v.durable.Get(ctx, keystore.KeyDeviceSalt)
	if err == nil {
		if len(salt) < crypto.MinSaltSize {
			return nil, models.NewVaultError(models.KindStorageUnavailable, "salt",
				fmt.Errorf("device salt has %d bytes: %w", len(salt), keystore.ErrStoreCorrupt))
		}
		return salt, nil
	}
	if !errors.Is(err, keystore.ErrKeyNotFound) {
		return nil, models.NewVaultError(models.KindStorageUnavailable, "salt", err)
	}
	if !create {
		return nil, errNoSalt
	}

	salt, err = crypto.GenerateRandom(v.random, crypto.SaltSize)
	if err != nil {
		return nil, models.NewVaultError(models.KindStorageUnavailable, "salt", err)
	}
	if err := v.durable.Set(ctx, keystore.KeyDeviceSalt, salt); err != nil {
		return nil, models.NewVaultError(models.KindStorageUnavailable, "salt", err)
	}

	v.logger.Debug("Created device salt")
	return salt, nil
}

// fail logs err at debug level and returns it unchanged.
func (v *Vault) fail(op string, err error) error {
	v.logger.WithFields(map[string]interface{}{
		"op":   op,
		"kind": models.KindOf(err).String(),
	}).Debug("Vault operation failed")
	return err
}

// decodeLegacy accepts the base64 form older releases wrote, falling back to
// the raw bytes when the value does not decode to printable text.
//
// Older releases did not record which form they used, so a raw passphrase
// that is itself base64 of printable text (such as "Zm9vYmFy") is read as
// its decoded form ("foobar"). Only passphrases of 4n characters drawn from
// the base64 alphabet are affected.
func decodeLegacy(raw []byte) string {
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil || len(decoded) == 0 || !printable(decoded) {
		return string(raw)
	}
	return string(decoded)
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
