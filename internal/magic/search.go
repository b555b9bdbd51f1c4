// Package magic searches for collision-free multiplicative hashes ("magic numbers")
// mapping slider occupancies to attack-table slots.
package magic

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand/v2"

	"github.com/hailam/slidermagic/internal/board"
)

// Search defaults.
const (
	DefaultMaxAttempts = 100_000_000
	DefaultMinTopBits  = 6
	MaxBits            = 16

	topByte = 0xFF00000000000000
)

var (
	ErrSearchExhausted = errors.New("magic search exhausted")
	ErrInvalidBits     = errors.New("invalid table-capacity bits")
)

// Candidate is one validated magic multiplier and the hash range it occupies.
type Candidate struct {
	Multiplier uint64
	MinHash    uint32
	MaxHash    uint32
	Width      uint32 // MaxHash - MinHash
}

// End returns MinHash + Width.
func (c Candidate) End() uint32 {
	return c.MinHash + c.Width
}

// Params configures a search.
type Params struct {
	Bits        uint8  // High product bits used as the hash
	MaxAttempts uint64 // Multipliers drawn before giving up
	MinTopBits  int    // Prefilter: set bits required in the top byte of mask*magic
}

// DefaultParams returns the default search parameters for a square.
func DefaultParams(sq board.Square, fam board.Family) Params {
	return Params{
		Bits:        DefaultBits(sq, fam),
		MaxAttempts: DefaultMaxAttempts,
		MinTopBits:  DefaultMinTopBits,
	}
}

// Searcher holds the precomputed keys and attack sets of one (square, family).
// It is not safe for concurrent use; give each worker its own.
type Searcher struct {
	sq   board.Square
	fam  board.Family
	bits uint8
	mask board.Bitboard

	// keys[i] is occupancy i with every cell outside the mask set.
	keys    []uint64
	attacks []board.Bitboard

	// Slot table. A slot is claimed in the current attempt iff stamp == gen.
	used  []board.Bitboard
	stamp []uint32
	gen   uint32
}

// NewSearcher precomputes every occupancy variation of sq.
func NewSearcher(sq board.Square, fam board.Family, tableBits uint8) (*Searcher, error) {
	if tableBits == 0 || tableBits > MaxBits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBits, tableBits)
	}

	mask := board.RelevantMask(sq, fam)
	n := 1 << mask.PopCount()

	s := &Searcher{
		sq:      sq,
		fam:     fam,
		bits:    tableBits,
		mask:    mask,
		keys:    make([]uint64, n),
		attacks: make([]board.Bitboard, n),
		used:    make([]board.Bitboard, 1<<tableBits),
		stamp:   make([]uint32, 1<<tableBits),
	}

	for i := 0; i < n; i++ {
		key := board.IndexToOccupancy(i, mask) | ^mask
		s.keys[i] = uint64(key)
		s.attacks[i] = board.Attacks(sq, fam, key)
	}

	return s, nil
}

// Mask returns the relevant occupancy mask.
func (s *Searcher) Mask() board.Bitboard {
	return s.mask
}

// Bits returns the table-capacity bits.
func (s *Searcher) Bits() uint8 {
	return s.bits
}

// Variations returns the number of occupancy variations.
func (s *Searcher) Variations() int {
	return len(s.keys)
}

// Search draws up to maxAttempts multipliers from rng and returns the first
// collision-free one. A seeded rng reproduces the same candidate.
func (s *Searcher) Search(rng *rand.Rand, maxAttempts uint64, minTopBits int) (Candidate, error) {
	shift := 64 - uint(s.bits)

	for attempt := uint64(0); attempt < maxAttempts; attempt++ {
		magic := randomSparse(rng)
		if bits.OnesCount64((uint64(s.mask)*magic)&topByte) < minTopBits {
			continue
		}

		s.nextGeneration()

		minJ, maxJ := uint32(1)<<s.bits, uint32(0)
		ok := true
		for i, key := range s.keys {
			j := uint32((key * magic) >> shift)
			minJ = min(minJ, j)
			maxJ = max(maxJ, j)

			if s.stamp[j] != s.gen {
				s.stamp[j] = s.gen
				s.used[j] = s.attacks[i]
			} else if s.used[j] != s.attacks[i] {
				ok = false
				break
			}
		}

		if ok {
			return Candidate{
				Multiplier: magic,
				MinHash:    minJ,
				MaxHash:    maxJ,
				Width:      maxJ - minJ,
			}, nil
		}
	}

	return Candidate{}, fmt.Errorf("%w: %v on %v after %d attempts", ErrSearchExhausted, s.fam, s.sq, maxAttempts)
}

// nextGeneration logically clears the slot table.
func (s *Searcher) nextGeneration() {
	s.gen++
	if s.gen == 0 {
		clear(s.stamp)
		s.gen = 1
	}
}

// randomSparse ANDs three random words, leaving about 8 set bits.
func randomSparse(rng *rand.Rand) uint64 {
	return rng.Uint64() & rng.Uint64() & rng.Uint64()
}

// Search runs a single search for sq with the given parameters.
func Search(sq board.Square, fam board.Family, p Params, rng *rand.Rand) (Candidate, error) {
	s, err := NewSearcher(sq, fam, p.Bits)
	if err != nil {
		return Candidate{}, err
	}
	return s.Search(rng, p.MaxAttempts, p.MinTopBits)
}
