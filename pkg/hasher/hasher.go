// Package hasher turns identifiers (emails, URLs, file paths) into the salted
// identity hashes used as cache keys and generator seeds.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SaltProvider supplies the persistent salt mixed into every hash.
type SaltProvider interface {
	Salt() string
}

// StaticSalt is a SaltProvider returning a fixed value.
type StaticSalt string

// Salt implements SaltProvider.
func (s StaticSalt) Salt() string { return string(s) }

// Hasher computes identity hashes.
type Hasher struct {
	salt SaltProvider
}

// New returns a Hasher reading its salt from p. A nil provider means no salt.
func New(p SaltProvider) *Hasher {
	if p == nil {
		p = StaticSalt("")
	}
	return &Hasher{salt: p}
}

// Hash normalizes identifier and returns the hex SHA-256 of salt+identifier.
// Leading and trailing whitespace is always trimmed; the identifier is
// lower-cased unless caseSensitive is set.
func (h *Hasher) Hash(identifier string, caseSensitive bool) string {
	normalized := strings.TrimSpace(identifier)
	if !caseSensitive {
		normalized = strings.ToLower(normalized)
	}
	sum := sha256.Sum256([]byte(h.salt.Salt() + normalized))
	return hex.EncodeToString(sum[:])
}
