package board

import "testing"

func TestRelevantMaskPopCount(t *testing.T) {
	tests := []struct {
		sq   Square
		fam  Family
		want int
	}{
		{A1, Orthogonal, 12},
		{H8, Orthogonal, 12},
		{A8, Orthogonal, 12},
		{B1, Orthogonal, 11},
		{B2, Orthogonal, 10},
		{D4, Orthogonal, 10},
		{A1, Diagonal, 6},
		{H1, Diagonal, 6},
		{B1, Diagonal, 5},
		{D4, Diagonal, 9},
		{E4, Diagonal, 9},
	}

	for _, tc := range tests {
		t.Run(tc.sq.String()+"/"+tc.fam.String(), func(t *testing.T) {
			got := RelevantMask(tc.sq, tc.fam).PopCount()
			if got != tc.want {
				t.Errorf("RelevantMask(%v, %v) popcount = %d, want %d", tc.sq, tc.fam, got, tc.want)
			}
		})
	}
}

func TestRelevantMaskBounds(t *testing.T) {
	for _, fam := range Families {
		for _, sq := range AllSquares() {
			mask := RelevantMask(sq, fam)
			empty := Attacks(sq, fam, Empty)

			if !mask.SubsetOf(empty) || mask == empty {
				t.Errorf("%v %v: mask is not a strict subset of empty-board attacks\n%v", fam, sq, mask)
			}
			if mask.IsSet(sq) {
				t.Errorf("%v %v: mask contains the origin square", fam, sq)
			}
			if fam == Diagonal && !mask.SubsetOf(Interior) {
				t.Errorf("%v %v: bishop mask touches the edge ring", fam, sq)
			}
			limit := 12
			if fam == Diagonal {
				limit = 9
			}
			if mask.PopCount() > limit {
				t.Errorf("%v %v: mask popcount %d exceeds %d", fam, sq, mask.PopCount(), limit)
			}
			if mask != RelevantMask(sq, fam) {
				t.Errorf("%v %v: mask is not deterministic", fam, sq)
			}
		}
	}
}

func TestAttacksEmptyBoardCorner(t *testing.T) {
	// a2..a8 and b1..h1
	const want Bitboard = (FileA | Rank1) &^ 1

	got := Attacks(A1, Orthogonal, Empty)
	if got != want {
		t.Errorf("rook a1 attacks =\n%v\nwant\n%v", got, want)
	}
	if got.PopCount() != 14 {
		t.Errorf("rook a1 reaches %d cells, want 14", got.PopCount())
	}

	// b2..h8 diagonal
	const diag Bitboard = 0x8040201008040200
	if got := Attacks(A1, Diagonal, Empty); got != diag {
		t.Errorf("bishop a1 attacks =\n%v\nwant\n%v", got, diag)
	}
}

func TestAttacksStopAtBlocker(t *testing.T) {
	mustSquare := func(s string) Square {
		sq, err := ParseSquare(s)
		if err != nil {
			t.Fatalf("ParseSquare(%q): %v", s, err)
		}
		return sq
	}

	occupied := SquareBB(mustSquare("d6")) | SquareBB(mustSquare("f4")) | SquareBB(mustSquare("f6"))

	rook := Attacks(D4, Orthogonal, occupied)
	for _, s := range []string{"d5", "d6", "e4", "f4", "d1", "a4"} {
		if !rook.IsSet(mustSquare(s)) {
			t.Errorf("rook d4 should reach %s", s)
		}
	}
	for _, s := range []string{"d7", "g4", "d4"} {
		if rook.IsSet(mustSquare(s)) {
			t.Errorf("rook d4 should not reach %s", s)
		}
	}

	bishop := Attacks(D4, Diagonal, occupied)
	if !bishop.IsSet(mustSquare("f6")) || bishop.IsSet(mustSquare("g7")) {
		t.Errorf("bishop d4 should stop on f6:\n%v", bishop)
	}
	if bishop.PopCount() != 11 {
		t.Errorf("bishop d4 reaches %d cells, want 11", bishop.PopCount())
	}
}

func TestOccupancyEnumeration(t *testing.T) {
	for _, fam := range Families {
		for _, sq := range []Square{A1, B2, D4, H8} {
			mask := RelevantMask(sq, fam)
			occs := Occupancies(mask)

			if len(occs) != 1<<mask.PopCount() {
				t.Fatalf("%v %v: %d occupancies, want %d", fam, sq, len(occs), 1<<mask.PopCount())
			}

			seen := make(map[Bitboard]bool, len(occs))
			for i, occ := range occs {
				if !occ.SubsetOf(mask) {
					t.Errorf("%v %v: occupancy %d escapes the mask", fam, sq, i)
				}
				if seen[occ] {
					t.Errorf("%v %v: occupancy %d repeated", fam, sq, i)
				}
				seen[occ] = true
			}

			if occs[0] != Empty || occs[len(occs)-1] != mask {
				t.Errorf("%v %v: first/last occupancy should be empty/full", fam, sq)
			}
		}
	}
}

func TestIndexToOccupancyBitOrder(t *testing.T) {
	mask := SquareBB(B1) | SquareBB(A2) | SquareBB(D4)

	tests := []struct {
		index int
		want  Bitboard
	}{
		{0b001, SquareBB(B1)},
		{0b010, SquareBB(A2)},
		{0b100, SquareBB(D4)},
		{0b101, SquareBB(B1) | SquareBB(D4)},
	}

	for _, tc := range tests {
		if got := IndexToOccupancy(tc.index, mask); got != tc.want {
			t.Errorf("IndexToOccupancy(%b) = %x, want %x", tc.index, uint64(got), uint64(tc.want))
		}
	}
}

func TestSquareNames(t *testing.T) {
	for _, sq := range AllSquares() {
		parsed, err := ParseSquare(sq.String())
		if err != nil {
			t.Fatalf("ParseSquare(%q): %v", sq.String(), err)
		}
		if parsed != sq {
			t.Errorf("ParseSquare(%q) = %d, want %d", sq.String(), parsed, sq)
		}
	}

	for _, bad := range []string{"", "i1", "a9", "a", "a10"} {
		if _, err := ParseSquare(bad); err == nil {
			t.Errorf("ParseSquare(%q) should fail", bad)
		}
	}
}
