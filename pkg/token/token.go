package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// MinTokenLength is the minimum accepted token length.
	// 41 characters is roughly 246 bits when base64-encoded.
	MinTokenLength = 41

	// DefaultTokenBytes is the amount of randomness in a generated token.
	// 32 bytes base64-encode to 44 characters.
	DefaultTokenBytes = 32
)

// ErrTokenTooShort is returned for tokens below MinTokenLength.
var ErrTokenTooShort = errors.New("token too short")

// Generate creates a random base64-URL token of DefaultTokenBytes bytes.
func Generate() (string, error) {
	return GenerateWithLength(DefaultTokenBytes)
}

// GenerateWithLength creates a random base64-URL token from numBytes random
// bytes. numBytes below DefaultTokenBytes is rejected.
func GenerateWithLength(numBytes int) (string, error) {
	if numBytes < DefaultTokenBytes {
		return "", fmt.Errorf("token length must be at least %d bytes", DefaultTokenBytes)
	}

	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Hash returns the hex-encoded HMAC-SHA256 of token keyed by secret.
func Hash(token, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// Validate reports whether provided hashes to storedHash. The comparison
// is constant-time.
func Validate(provided, secret, storedHash string) bool {
	return hmac.Equal([]byte(Hash(provided, secret)), []byte(storedHash))
}

// ValidateLength rejects tokens shorter than MinTokenLength.
func ValidateLength(token string) error {
	if len(token) < MinTokenLength {
		return fmt.Errorf("%w: got %d characters, need at least %d", ErrTokenTooShort, len(token), MinTokenLength)
	}
	return nil
}

// Verifier checks presented tokens against one configured hash.
type Verifier struct {
	secret string
	hash   string
}

// NewVerifier creates a verifier. An empty hash disables every token.
func NewVerifier(secret, hash string) *Verifier {
	return &Verifier{secret: secret, hash: hash}
}

// Enabled reports whether a hash is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && v.hash != ""
}

// Check reports whether provided is the operator token.
func (v *Verifier) Check(provided string) bool {
	if !v.Enabled() || ValidateLength(provided) != nil {
		return false
	}
	return Validate(provided, v.secret, v.hash)
}
