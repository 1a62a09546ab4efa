// Package entropy provides the single random source shared by a simulation.
// Seeded sources make runs reproducible; the crypto source is for runs that
// should never repeat.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source yields uniformly distributed floats in [0, 1).
// *math/rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Seeded returns a deterministic source. Two sources built from the same
// seed produce identical sequences.
func Seeded(seed int64) Source {
	return mrand.New(mrand.NewSource(seed))
}

// Crypto draws from crypto/rand. Not reproducible.
type Crypto struct{}

// Float64 returns a random float in [0, 1).
func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// NewSeed returns a fresh non-zero seed from crypto/rand for runs started
// without one. Logging it lets the run be replayed with Seeded.
func NewSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		return 1
	}
	return seed
}

// Sequence replays a fixed list of values, cycling when exhausted.
// Used to script outcomes in tests.
type Sequence struct {
	mu    sync.Mutex
	vals  []float64
	next  int
	drawn int
}

// NewSequence creates a scripted source. With no values it always returns 0.
func NewSequence(vals ...float64) *Sequence {
	return &Sequence{vals: vals}
}

// Float64 returns the next scripted value.
func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drawn++
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[s.next]
	s.next = (s.next + 1) % len(s.vals)
	return v
}

// Drawn returns how many values have been consumed.
func (s *Sequence) Drawn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawn
}

// Chance performs a Bernoulli trial: true with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}
