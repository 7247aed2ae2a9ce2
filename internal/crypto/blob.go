package crypto

import (
	"encoding/json"
	"fmt"
)

// CurrentSchemaVersion is written into every new blob.
const CurrentSchemaVersion = 1

// EncryptedBlob is the persisted form of an encrypted payload. Byte fields
// are base64 in the JSON encoding.
type EncryptedBlob struct {
	SchemaVersion int       `json:"schema_version"`
	KDF           KDFParams `json:"kdf"`
	Salt          []byte    `json:"salt"`
	Nonce         []byte    `json:"nonce"`
	Ciphertext    []byte    `json:"ciphertext"` // includes the GCM tag
}

// Validate checks the blob structure without attempting decryption.
func (b *EncryptedBlob) Validate() error {
	if b == nil {
		return newDecryptError(ReasonMalformed, fmt.Errorf("nil blob"))
	}
	if b.SchemaVersion != CurrentSchemaVersion {
		return newDecryptError(ReasonVersion, fmt.Errorf("unsupported schema version: %d", b.SchemaVersion))
	}
	if err := b.KDF.Validate(); err != nil {
		return newDecryptError(ReasonMalformed, err)
	}
	if len(b.Salt) < MinSaltSize {
		return newDecryptError(ReasonMalformed, fmt.Errorf("salt too short: %d bytes", len(b.Salt)))
	}
	if len(b.Nonce) != NonceSize {
		return newDecryptError(ReasonMalformed, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(b.Nonce)))
	}
	if len(b.Ciphertext) < TagSize {
		return newDecryptError(ReasonMalformed, ErrInvalidCiphertext)
	}
	return nil
}

// MarshalBlob encodes a blob for storage.
func MarshalBlob(b *EncryptedBlob) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("marshal blob: nil blob")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal blob: %w", err)
	}
	return data, nil
}

// ParseBlob decodes and validates a stored blob. Failures satisfy
// errors.Is(err, ErrDecryptionFailed).
func ParseBlob(data []byte) (*EncryptedBlob, error) {
	var b EncryptedBlob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, newDecryptError(ReasonMalformed, fmt.Errorf("parse blob: %w", err))
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
