// Package rng defines the randomness source consumed by the QKD pipeline and
// provides crypto-backed, seeded, and scripted implementations.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	exprand "golang.org/x/exp/rand"
)

// A Source supplies uniformly distributed values to protocol components. A
// Source must be safe to call repeatedly; deterministic implementations are
// expected for tests. Unless otherwise documented, implementations are not
// safe for concurrent use from multiple goroutines.
type Source interface {
	// Bit returns a single unbiased bit.
	Bit() bool

	// IntN returns a uniform integer in [0, n). Panics if n <= 0.
	IntN(n int) int

	// Float64 returns a uniform double in [0, 1).
	Float64() float64

	// Uint64 returns a uniform 64-bit value.
	Uint64() uint64
}

// Crypto returns a Source backed by crypto/rand. It is safe for concurrent
// use.
func Crypto() Source {
	return &cryptoSource{}
}

type cryptoSource struct {
	mu sync.Mutex
}

func (c *cryptoSource) Uint64() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; treat a failure
		// as an unrecoverable environment problem.
		panic(err)
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (c *cryptoSource) Bit() bool {
	return c.Uint64()&1 == 1
}

func (c *cryptoSource) IntN(n int) int {
	if n <= 0 {
		panic("rng: IntN with non-positive n")
	}
	// Rejection sampling to avoid modulo bias.
	max := ^uint64(0) - ^uint64(0)%uint64(n)
	for {
		v := c.Uint64()
		if v < max {
			return int(v % uint64(n))
		}
	}
}

func (c *cryptoSource) Float64() float64 {
	return float64(c.Uint64()>>11) / (1 << 53)
}

// NewSeeded returns a deterministic Source seeded with the given value,
// suitable for experiments and tests.
func NewSeeded(seed int64) Source {
	return &seeded{r: rand.New(rand.NewSource(seed))}
}

type seeded struct {
	r *rand.Rand
}

func (s *seeded) Bit() bool        { return s.r.Int63()&1 == 1 }
func (s *seeded) IntN(n int) int   { return s.r.Intn(n) }
func (s *seeded) Float64() float64 { return s.r.Float64() }
func (s *seeded) Uint64() uint64   { return s.r.Uint64() }

// A Scripted source replays fixed value scripts, cycling when a script is
// exhausted. A nil or empty script yields zero values. Scripted sources make
// probabilistic branches fully deterministic in tests.
type Scripted struct {
	Bits   []bool
	Ints   []int
	Floats []float64
	Uints  []uint64

	bi, ii, fi, ui int
}

func (s *Scripted) Bit() bool {
	if len(s.Bits) == 0 {
		return false
	}
	v := s.Bits[s.bi%len(s.Bits)]
	s.bi++
	return v
}

func (s *Scripted) IntN(n int) int {
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	return v % n
}

func (s *Scripted) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

func (s *Scripted) Uint64() uint64 {
	if len(s.Uints) == 0 {
		return 0
	}
	v := s.Uints[s.ui%len(s.Uints)]
	s.ui++
	return v
}

// ExpSource adapts a Source to golang.org/x/exp/rand.Source, the source type
// consumed by gonum's distuv distributions.
func ExpSource(s Source) exprand.Source {
	return expSource{s: s}
}

type expSource struct {
	s Source
}

func (e expSource) Uint64() uint64 { return e.s.Uint64() }

// Seed is a no-op: the underlying Source owns its seeding.
func (e expSource) Seed(uint64) {}
