package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
)

const (
	// Key sizes
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard
	TagSize   = 16 // GCM tag

	SaltSize    = 32
	MinSaltSize = 16
)

// Errors
var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrInvalidKey        = errors.New("invalid key size")
	ErrAuthFailed        = errors.New("message authentication failed")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Decryption failure reasons. They are for diagnostics only; callers outside
// the vault should only ever see ErrDecryptionFailed.
const (
	ReasonAuth      = "authentication"
	ReasonMalformed = "malformed"
	ReasonVersion   = "unsupported_version"
	ReasonPayload   = "payload"
)

// DecryptError records why a decryption failed.
type DecryptError struct {
	Reason string
	Err    error
}

func newDecryptError(reason string, err error) *DecryptError {
	return &DecryptError{Reason: reason, Err: err}
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrDecryptionFailed, e.Reason, e.Err)
}

func (e *DecryptError) Unwrap() error {
	return e.Err
}

// Is matches ErrDecryptionFailed for every reason.
func (e *DecryptError) Is(target error) bool {
	return target == ErrDecryptionFailed
}

// ReasonOf returns the decryption failure reason, or "" for other errors.
func ReasonOf(err error) string {
	var de *DecryptError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// CryptoProvider handles all cryptographic operations.
type CryptoProvider struct {
	kdf    KDFParams
	random io.Reader
}

// Option configures a CryptoProvider.
type Option func(*CryptoProvider)

// WithIterations sets the PBKDF2 cost for new blobs.
func WithIterations(n int) Option {
	return func(p *CryptoProvider) {
		p.kdf = PBKDF2Params(n)
	}
}

// WithKDF sets the full key derivation parameters for new blobs.
func WithKDF(params KDFParams) Option {
	return func(p *CryptoProvider) {
		p.kdf = params
	}
}

// WithRandom replaces the randomness source used for salts and nonces.
func WithRandom(r io.Reader) Option {
	return func(p *CryptoProvider) {
		p.random = r
	}
}

// NewProvider creates a crypto provider.
func NewProvider(opts ...Option) *CryptoProvider {
	p := &CryptoProvider{
		kdf:    PBKDF2Params(DefaultIterations),
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Params returns the parameters used for new blobs.
func (p *CryptoProvider) Params() KDFParams {
	return p.kdf
}

// Encrypt serializes value and seals it under a passphrase-derived key.
func (p *CryptoProvider) Encrypt(value any, passphrase string) (*EncryptedBlob, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(p.random, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key, err := DeriveKey(normalizePassphrase(passphrase), salt, p.kdf)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer ClearBytes(key)

	nonce, sealed, err := seal(p.random, plaintext, key)
	if err != nil {
		return nil, err
	}

	return &EncryptedBlob{
		SchemaVersion: CurrentSchemaVersion,
		KDF:           p.kdf,
		Salt:          salt,
		Nonce:         nonce,
		Ciphertext:    sealed,
	}, nil
}

// Decrypt re-derives the key from the blob's salt, verifies the tag and
// decodes the payload into out.
func (p *CryptoProvider) Decrypt(blob *EncryptedBlob, passphrase string, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decrypt: out must be a non-nil pointer, got %T", out)
	}

	if err := blob.Validate(); err != nil {
		return err
	}

	key, err := DeriveKey(normalizePassphrase(passphrase), blob.Salt, blob.KDF)
	if err != nil {
		return newDecryptError(ReasonMalformed, err)
	}
	defer ClearBytes(key)

	plaintext, err := open(blob.Nonce, blob.Ciphertext, key)
	if err != nil {
		return newDecryptError(ReasonAuth, err)
	}
	defer ClearBytes(plaintext)

	// Decode into a fresh value so a bad payload never half-fills out.
	tmp := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(plaintext, tmp.Interface()); err != nil {
		return newDecryptError(ReasonPayload, err)
	}
	rv.Elem().Set(tmp.Elem())

	return nil
}

// NeedsUpgrade reports whether blob uses weaker parameters than p.
func (p *CryptoProvider) NeedsUpgrade(blob *EncryptedBlob) bool {
	if blob == nil {
		return false
	}
	return blob.SchemaVersion < CurrentSchemaVersion || blob.KDF.weakerThan(p.kdf)
}

// ClearBytes overwrites b with zeros.
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateRandom reads n bytes from r.
func GenerateRandom(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}
	return b, nil
}

var _ Provider = (*CryptoProvider)(nil)
