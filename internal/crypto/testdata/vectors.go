package testdata

// KDFVector contains a known key derivation input/output pair.
type KDFVector struct {
	Name       string
	Secret     string
	Salt       string
	KDF        string
	Iterations int
	N, R, P    int
	Key        string // Hex, first 32 bytes
}

// KDFVectors are published PBKDF2-HMAC-SHA256 and RFC 7914 scrypt outputs.
var KDFVectors = []KDFVector{
	{
		Name:       "pbkdf2 one iteration",
		Secret:     "password",
		Salt:       "salt",
		KDF:        "pbkdf2-sha256",
		Iterations: 1,
		Key:        "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b",
	},
	{
		Name:       "pbkdf2 4096 iterations",
		Secret:     "password",
		Salt:       "salt",
		KDF:        "pbkdf2-sha256",
		Iterations: 4096,
		Key:        "c5e478d59288c841aa530db6845c4c8d962893a001ce4e11a4963873aa98134a",
	},
	{
		Name:   "scrypt rfc7914",
		Secret: "password",
		Salt:   "NaCl",
		KDF:    "scrypt",
		N:      1024,
		R:      8,
		P:      16,
		Key:    "fdbabe1c9d3472007856e7190d01e9fe7c6ad7cbc8237830e77376634b373162",
	},
}

// Payloads are structured values that must survive an encrypt/decrypt round trip.
var Payloads = []struct {
	Name  string
	Value map[string]any
}{
	{Name: "empty", Value: map[string]any{}},
	{Name: "flat", Value: map[string]any{"passphrase": "correct horse battery staple", "version": float64(3)}},
	{Name: "unicode", Value: map[string]any{"note": "Hello, 世界! 🌍", "nested": map[string]any{"ok": true}}},
}
