package board

// Slider geometry by ray casting. Nothing here is cached: masks and attack
// sets are cheap to recompute and are only needed while building tables.

// Attacks computes the cells reachable from sq for the given family.
// Each ray stops on the first occupied cell, which is included.
func Attacks(sq Square, fam Family, occupied Bitboard) Bitboard {
	var attacks Bitboard
	file, rank := sq.File(), sq.Rank()

	for _, d := range fam.directions() {
		for f, r := file+d.df, rank+d.dr; onBoard(f, r); f, r = f+d.df, r+d.dr {
			s := NewSquare(f, r)
			attacks |= SquareBB(s)
			if occupied&SquareBB(s) != 0 {
				break
			}
		}
	}

	return attacks
}

// RelevantMask returns the cells whose occupancy can change the attack set of sq.
// The last cell of every ray is left out: a blocker there hides nothing.
func RelevantMask(sq Square, fam Family) Bitboard {
	var mask Bitboard
	file, rank := sq.File(), sq.Rank()

	for _, d := range fam.directions() {
		for f, r := file+d.df, rank+d.dr; onBoard(f+d.df, r+d.dr); f, r = f+d.df, r+d.dr {
			mask |= SquareBB(NewSquare(f, r))
		}
	}

	return mask
}

func onBoard(file, rank int) bool {
	return file >= 0 && file <= 7 && rank >= 0 && rank <= 7
}
