package magic

import (
	"errors"
	"fmt"

	"github.com/hailam/slidermagic/internal/board"
)

var (
	ErrCollision     = errors.New("magic collision")
	ErrRangeMismatch = errors.New("magic hash range mismatch")
)

// hashKey maps an occupancy to its slot. Cells outside the mask are forced on
// so that a stored candidate hashes exactly as it did during the search.
func hashKey(occ, mask board.Bitboard, magic uint64, tableBits uint8) uint32 {
	key := uint64(occ&mask | ^mask)
	return uint32((key * magic) >> (64 - uint(tableBits)))
}

// Verify replays every occupancy of sq through c and checks that differing
// attack sets never share a slot and that the recorded range is exact.
func Verify(sq board.Square, fam board.Family, tableBits uint8, c Candidate) error {
	if tableBits == 0 || tableBits > MaxBits {
		return fmt.Errorf("%w: %d", ErrInvalidBits, tableBits)
	}

	mask := board.RelevantMask(sq, fam)
	slots := make(map[uint32]board.Bitboard, 1<<mask.PopCount())
	minJ, maxJ := uint32(1)<<tableBits, uint32(0)

	for _, occ := range board.Occupancies(mask) {
		j := hashKey(occ, mask, c.Multiplier, tableBits)
		attacks := board.Attacks(sq, fam, occ)
		if prev, ok := slots[j]; ok && prev != attacks {
			return fmt.Errorf("%w: %v on %v, slot %d, magic %d", ErrCollision, fam, sq, j, c.Multiplier)
		}
		slots[j] = attacks
		minJ = min(minJ, j)
		maxJ = max(maxJ, j)
	}

	if minJ != c.MinHash || maxJ != c.MaxHash || c.Width != maxJ-minJ {
		return fmt.Errorf("%w: %v on %v, recorded [%d,%d] width %d, replayed [%d,%d]",
			ErrRangeMismatch, fam, sq, c.MinHash, c.MaxHash, c.Width, minJ, maxJ)
	}
	return nil
}

// Entry is the per-square lookup data a move generator would embed.
type Entry struct {
	Mask   board.Bitboard // Relevant occupancy mask (excludes ray ends)
	Magic  uint64         // Magic multiplier
	Bits   uint8          // Table-capacity bits
	Offset uint32         // MinHash; the table starts at this slot
}

// Table is one square's attack table, trimmed to the candidate's hash range.
type Table struct {
	Entry
	Attacks []board.Bitboard
}

// BuildTable fills the attack table for sq from a verified candidate.
func BuildTable(sq board.Square, fam board.Family, tableBits uint8, c Candidate) (*Table, error) {
	if err := Verify(sq, fam, tableBits, c); err != nil {
		return nil, err
	}

	mask := board.RelevantMask(sq, fam)
	t := &Table{
		Entry: Entry{
			Mask:   mask,
			Magic:  c.Multiplier,
			Bits:   tableBits,
			Offset: c.MinHash,
		},
		Attacks: make([]board.Bitboard, c.Width+1),
	}

	for _, occ := range board.Occupancies(mask) {
		j := hashKey(occ, mask, c.Multiplier, tableBits)
		t.Attacks[j-c.MinHash] = board.Attacks(sq, fam, occ)
	}
	return t, nil
}

// Lookup returns the attack set for an arbitrary board occupancy.
func (t *Table) Lookup(occupied board.Bitboard) board.Bitboard {
	return t.Attacks[hashKey(occupied, t.Mask, t.Magic, t.Bits)-t.Offset]
}
