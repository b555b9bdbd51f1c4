package board

// IndexToOccupancy converts an index in [0, 2^popcount(mask)) to a subset of mask.
// Bit k of index selects the k-th lowest square of mask.
func IndexToOccupancy(index int, mask Bitboard) Bitboard {
	var occ Bitboard
	for i := 0; mask != 0; i++ {
		sq := mask.PopLSB()
		if index&(1<<i) != 0 {
			occ |= SquareBB(sq)
		}
	}
	return occ
}

// Occupancies enumerates every subset of mask in index order.
func Occupancies(mask Bitboard) []Bitboard {
	n := 1 << mask.PopCount()
	occs := make([]Bitboard, n)
	for i := range occs {
		occs[i] = IndexToOccupancy(i, mask)
	}
	return occs
}
