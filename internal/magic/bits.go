package magic

import "github.com/hailam/slidermagic/internal/board"

// BishopBits is the minimum table-capacity bits per square for the diagonal family.
var BishopBits = [64]uint8{
	6, 5, 5, 5, 5, 5, 5, 6,
	5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 7, 7, 7, 7, 5, 5,
	5, 5, 7, 9, 9, 7, 5, 5,
	5, 5, 7, 9, 9, 7, 5, 5,
	5, 5, 7, 7, 7, 7, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5,
	6, 5, 5, 5, 5, 5, 5, 6,
}

// RookBits is the minimum table-capacity bits per square for the orthogonal family.
var RookBits = [64]uint8{
	12, 11, 11, 11, 11, 11, 11, 12,
	11, 10, 10, 10, 10, 10, 10, 11,
	11, 10, 10, 10, 10, 10, 10, 11,
	11, 10, 10, 10, 10, 10, 10, 11,
	11, 10, 10, 10, 10, 10, 10, 11,
	11, 10, 10, 10, 10, 10, 10, 11,
	11, 10, 10, 10, 10, 10, 10, 11,
	12, 11, 11, 11, 11, 11, 11, 12,
}

// DefaultBits returns the table-capacity bits for a square.
func DefaultBits(sq board.Square, fam board.Family) uint8 {
	if fam == board.Diagonal {
		return BishopBits[sq]
	}
	return RookBits[sq]
}
