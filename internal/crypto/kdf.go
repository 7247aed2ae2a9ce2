package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

// Key derivation function names recorded in blobs.
const (
	KDFPBKDF2 = "pbkdf2-sha256"
	KDFScrypt = "scrypt"
)

const (
	// DefaultIterations follows current OWASP guidance for PBKDF2-HMAC-SHA256.
	DefaultIterations = 600000

	// MaxIterations bounds the work an untrusted blob can request.
	MaxIterations = 10000000

	// Scrypt parameters for new scrypt blobs.
	ScryptN = 32768 // CPU/memory cost parameter
	ScryptR = 8     // block size parameter
	ScryptP = 1     // parallelization parameter

	maxScryptN = 1 << 20
	maxScryptP = 16
)

// KDFParams names a key derivation function and its cost.
type KDFParams struct {
	Name       string `json:"name"`
	Iterations int    `json:"iterations,omitempty"`
	N          int    `json:"n,omitempty"`
	R          int    `json:"r,omitempty"`
	P          int    `json:"p,omitempty"`
}

// PBKDF2Params returns PBKDF2-HMAC-SHA256 parameters.
func PBKDF2Params(iterations int) KDFParams {
	return KDFParams{Name: KDFPBKDF2, Iterations: iterations}
}

// ScryptParams returns the default scrypt parameters.
func ScryptParams() KDFParams {
	return KDFParams{Name: KDFScrypt, N: ScryptN, R: ScryptR, P: ScryptP}
}

// Validate rejects unknown functions and out-of-range costs.
func (p KDFParams) Validate() error {
	switch p.Name {
	case KDFPBKDF2:
		if p.Iterations < 1 || p.Iterations > MaxIterations {
			return fmt.Errorf("pbkdf2 iterations out of range: %d", p.Iterations)
		}
	case KDFScrypt:
		if p.N < 2 || p.N > maxScryptN || p.N&(p.N-1) != 0 {
			return fmt.Errorf("scrypt N must be a power of two <= %d: %d", maxScryptN, p.N)
		}
		if p.R < 1 || p.R > 32 || p.P < 1 || p.P > maxScryptP {
			return fmt.Errorf("scrypt r/p out of range: r=%d p=%d", p.R, p.P)
		}
	default:
		return fmt.Errorf("unsupported kdf: %q", p.Name)
	}
	return nil
}

// weakerThan reports whether p costs less than other. Different functions
// are never compared; a change of function counts as weaker.
func (p KDFParams) weakerThan(other KDFParams) bool {
	if p.Name != other.Name {
		return true
	}
	switch p.Name {
	case KDFPBKDF2:
		return p.Iterations < other.Iterations
	case KDFScrypt:
		return p.N*p.R*p.P < other.N*other.R*other.P
	}
	return false
}

// DeriveKey derives a KeySize key from secret and salt. Identical inputs
// always produce identical keys.
func DeriveKey(secret, salt []byte, params KDFParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("salt is empty")
	}

	switch params.Name {
	case KDFScrypt:
		key, err := scrypt.Key(secret, salt, params.N, params.R, params.P, KeySize)
		if err != nil {
			return nil, fmt.Errorf("scrypt key derivation: %w", err)
		}
		return key, nil
	default:
		return pbkdf2.Key(secret, salt, params.Iterations, KeySize, sha256.New), nil
	}
}

// normalizePassphrase folds compatibility forms so the same passphrase typed
// on different keyboards derives the same key.
func normalizePassphrase(s string) []byte {
	return []byte(norm.NFKC.String(s))
}
