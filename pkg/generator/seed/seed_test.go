package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIsReproducible(t *testing.T) {
	a := FromHex("abc12345")
	b := FromHex("abc12345")
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestKnownSplitmixValues(t *testing.T) {
	s := New(0)
	assert.Equal(t, uint64(0xe220a8397b1dcdaf), s.Uint64())
	assert.Equal(t, uint64(0x6e789e6aa1b965f4), s.Uint64())
}

func TestRangeBounds(t *testing.T) {
	s := New(42)
	for i := 0; i < 1000; i++ {
		v := s.Range(3, 7)
		assert.GreaterOrEqual(t, v, 3)
		assert.LessOrEqual(t, v, 7)
		f := s.Float64()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
	assert.Equal(t, 5, s.Range(5, 5))
}

func TestDifferentSeedsDiverge(t *testing.T) {
	assert.NotEqual(t, FromHex("00000001").Uint64(), FromHex("00000002").Uint64())
}
