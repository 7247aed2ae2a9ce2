package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeNotFound    = "CREDENTIAL_NOT_FOUND"
	ErrCodeDecryption  = "DECRYPTION_ERROR"
	ErrCodeStorage     = "STORAGE_ERROR"
	ErrCodeMigration   = "MIGRATION_ERROR"
	ErrCodeConfig      = "CONFIG_ERROR"
	ErrCodeFingerprint = "FINGERPRINT_ERROR"
)

// Sentinel errors
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMigrationFailed    = errors.New("legacy credential migration failed")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// VaultErrorKind classifies a credential vault failure.
type VaultErrorKind int

const (
	KindCredentialNotFound VaultErrorKind = iota + 1
	KindDecryption
	KindStorageUnavailable
	KindMigration
)

func (k VaultErrorKind) String() string {
	switch k {
	case KindCredentialNotFound:
		return "credential_not_found"
	case KindDecryption:
		return "decryption"
	case KindStorageUnavailable:
		return "storage_unavailable"
	case KindMigration:
		return "migration"
	default:
		return "unknown"
	}
}

// Code returns the structured error code for the kind.
func (k VaultErrorKind) Code() string {
	switch k {
	case KindCredentialNotFound:
		return ErrCodeNotFound
	case KindDecryption:
		return ErrCodeDecryption
	case KindStorageUnavailable:
		return ErrCodeStorage
	case KindMigration:
		return ErrCodeMigration
	default:
		return ""
	}
}

func (k VaultErrorKind) sentinel() error {
	switch k {
	case KindCredentialNotFound:
		return ErrCredentialNotFound
	case KindDecryption:
		return ErrDecryptionFailed
	case KindStorageUnavailable:
		return ErrStorageUnavailable
	case KindMigration:
		return ErrMigrationFailed
	default:
		return nil
	}
}

// VaultError is the only error type returned across the credential vault
// boundary. Err carries the underlying cause and is never exposed in the
// message for decryption failures.
type VaultError struct {
	Kind VaultErrorKind
	Op   string
	Err  error
}

// NewVaultError builds a VaultError for an operation.
func NewVaultError(kind VaultErrorKind, op string, err error) *VaultError {
	return &VaultError{Kind: kind, Op: op, Err: err}
}

func (e *VaultError) Error() string {
	// Wrong passphrase and corrupted data must read the same to callers.
	if e.Kind == KindDecryption || e.Err == nil {
		return fmt.Sprintf("vault %s [%s]: %v", e.Op, e.Kind.Code(), e.Kind.sentinel())
	}
	return fmt.Sprintf("vault %s [%s]: %v", e.Op, e.Kind.Code(), e.Err)
}

func (e *VaultError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the kind.
func (e *VaultError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Code returns the structured error code.
func (e *VaultError) Code() string {
	return e.Kind.Code()
}

// KindOf returns the VaultErrorKind of err, or 0 if err is not a VaultError.
func KindOf(err error) VaultErrorKind {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return 0
}

// IsRecoverable reports whether err should be surfaced as a re-prompt for the
// passphrase rather than a fatal failure.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindCredentialNotFound, KindDecryption, KindMigration:
		return true
	default:
		return false
	}
}
