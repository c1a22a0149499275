// Package seed provides the small deterministic PRNG the raster generators
// draw their choices from. Each generator call owns its own Source.
package seed

import "strconv"

// Source is a splitmix64 generator.
type Source struct {
	state uint64
}

// New returns a Source seeded with v.
func New(v uint64) *Source {
	return &Source{state: v}
}

// FromHex seeds a Source from the leading hex digits of h (at most 16).
// Invalid input seeds with zero.
func FromHex(h string) *Source {
	if len(h) > 16 {
		h = h[:16]
	}
	v, _ := strconv.ParseUint(h, 16, 64)
	return New(v)
}

// Uint64 returns the next value in the sequence.
func (s *Source) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Intn returns a value in [0, n). It panics if n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("seed: invalid argument to Intn")
	}
	return int(s.Uint64() % uint64(n))
}

// Range returns a value in the closed interval [lo, hi].
func (s *Source) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.Intn(hi-lo+1)
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}
