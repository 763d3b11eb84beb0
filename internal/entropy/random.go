// Package entropy provides the random sources the migration engine draws from.
// Every stochastic update goes through a Source so that a run can be replayed
// from a seed, or driven by a fixed sequence in tests.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	mrand "math/rand/v2"
	"sync"
)

// Source yields uniform random numbers.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
}

// Seeded is a deterministic PCG-backed source.
type Seeded struct {
	rng *mrand.Rand
}

// NewSeeded creates a source whose sequence is fully determined by seed.
func NewSeeded(seed int64) *Seeded {
	s := uint64(seed)
	return &Seeded{rng: mrand.New(mrand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (s *Seeded) Float64() float64 { return s.rng.Float64() }

func (s *Seeded) IntN(n int) int { return s.rng.IntN(n) }

// Crypto draws from crypto/rand. Runs using it cannot be replayed.
type Crypto struct{}

func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}

func (Crypto) IntN(n int) int {
	v := int(cryptoRandFloat() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
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

// Sequence replays a fixed list of floats, cycling when exhausted.
// IntN maps the next float onto [0, n).
type Sequence struct {
	mu     sync.Mutex
	values []float64
	pos    int
}

// NewSequence creates a scripted source. With no values it always yields 0.5.
func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}

func (s *Sequence) IntN(n int) int {
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Draws reports how many values have been consumed.
func (s *Sequence) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// New returns a seeded source, or a crypto source when seed is zero.
func New(seed int64) Source {
	if seed == 0 {
		return Crypto{}
	}
	return NewSeeded(seed)
}

// IDReader returns the byte stream entity IDs are drawn from. It is kept
// apart from Source so that ID generation never shifts the simulation's
// draws. A zero seed reads from crypto/rand.
func IDReader(seed int64) io.Reader {
	if seed == 0 {
		return rand.Reader
	}
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], uint64(seed))
	return mrand.NewChaCha8(key)
}
