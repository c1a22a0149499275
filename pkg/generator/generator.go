// Package generator defines the contract shared by the deterministic icon
// generators. Every generator is a pure function of (hash, size).
package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

// Generator renders an avatar from an identity hash.
type Generator interface {
	// Namespace is the cache namespace entries are stored under.
	Namespace() string
	// MimeType of the bytes Build returns.
	MimeType() string
	Build(hash string, size int) ([]byte, error)
}

// MaxSize bounds the pixel size generators accept.
const MaxSize = 2048

// Digits validates hash as hexadecimal and returns it lower-cased with at
// least n digits. Short hashes are extended with the hex SHA-256 of the
// hash so every generator can read the digit positions it needs.
func Digits(op, hash string, n int) (string, error) {
	h := strings.ToLower(strings.TrimSpace(hash))
	if h == "" {
		return "", xerrors.E(xerrors.KindGenerationFailed, op, "empty hash")
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", xerrors.Wrap(xerrors.KindGenerationFailed, op, hash, fmt.Errorf("hash is not hexadecimal"))
		}
	}
	for len(h) < n {
		sum := sha256.Sum256([]byte(h))
		h += hex.EncodeToString(sum[:])
	}
	return h, nil
}

// CheckSize rejects sizes outside (0, MaxSize].
func CheckSize(op string, size int) error {
	if size <= 0 || size > MaxSize {
		return xerrors.Wrap(xerrors.KindGenerationFailed, op, "", fmt.Errorf("size %d out of range", size))
	}
	return nil
}
