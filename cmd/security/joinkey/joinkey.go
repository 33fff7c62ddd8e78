package joinkey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const (
	// DefaultKeyBytes is the number of random bytes in a generated key
	// (8 hex chars). This matches the entropy of the legacy short keys and
	// is a floor, not a target; deployments can raise it via config.
	DefaultKeyBytes = 4

	// MaxKeyBytes bounds generated key length so keys stay human-shareable.
	MaxKeyBytes = 16
)

// Generator produces join keys of a fixed byte length.
// The zero value generates DefaultKeyBytes-sized keys.
type Generator struct {
	nBytes int
}

// NewGenerator returns a Generator producing keys of nBytes random bytes,
// clamped to [DefaultKeyBytes, MaxKeyBytes].
func NewGenerator(nBytes int) Generator {
	if nBytes < DefaultKeyBytes {
		nBytes = DefaultKeyBytes
	}
	if nBytes > MaxKeyBytes {
		nBytes = MaxKeyBytes
	}
	return Generator{nBytes: nBytes}
}

// NewKey returns a fresh join key as a lowercase hex string.
func (g Generator) NewKey() (string, error) {
	n := g.nBytes
	if n <= 0 {
		n = DefaultKeyBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DigestHex returns the SHA-256 hex digest of the UTF-8 key.
// An empty key is malformed input.
func DigestHex(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the digest of key and compares it to digestHex in
// constant time. An empty key never verifies.
func Verify(key, digestHex string) bool {
	got, err := DigestHex(key)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(digestHex)) == 1
}
