package crypto

// Provider defines the interface for passphrase-based payload encryption.
type Provider interface {
	// Encrypt serializes value as JSON and seals it under a key derived
	// from passphrase and a fresh salt.
	Encrypt(value any, passphrase string) (*EncryptedBlob, error)

	// Decrypt opens blob with passphrase and decodes the payload into out,
	// which must be a non-nil pointer. out is untouched on failure.
	Decrypt(blob *EncryptedBlob, passphrase string, out any) error

	// NeedsUpgrade reports whether blob was sealed with weaker parameters
	// than the provider currently uses.
	NeedsUpgrade(blob *EncryptedBlob) bool
}
