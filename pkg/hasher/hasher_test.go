package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashNormalizesIdentifier(t *testing.T) {
	h := New(StaticSalt("pepper"))
	a := h.Hash("  Someone@Example.COM ", false)
	b := h.Hash("someone@example.com", false)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	sum := sha256.Sum256([]byte("peppersomeone@example.com"))
	assert.Equal(t, hex.EncodeToString(sum[:]), a)
}

func TestHashCaseSensitive(t *testing.T) {
	h := New(StaticSalt("pepper"))
	assert.NotEqual(t, h.Hash("https://example.com/A.png", true), h.Hash("https://example.com/a.png", true))
	assert.Equal(t, h.Hash(" https://example.com/A.png", true), h.Hash("https://example.com/A.png", true))
}

func TestHashDependsOnSalt(t *testing.T) {
	a := New(StaticSalt("one")).Hash("someone@example.com", false)
	b := New(StaticSalt("two")).Hash("someone@example.com", false)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "someone")
}

func TestNilProviderMeansNoSalt(t *testing.T) {
	sum := sha256.Sum256([]byte("x"))
	assert.Equal(t, hex.EncodeToString(sum[:]), New(nil).Hash("X", false))
}
