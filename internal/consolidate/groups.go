// Package consolidate packs the attack tables of squares that share one
// backing array, choosing per square the candidate that minimizes the span
// of the shared range.
package consolidate

import (
	"fmt"
	"strings"

	"github.com/hailam/slidermagic/internal/board"
)

// Group is a fixed set of squares merged into one backing array.
type Group struct {
	Family board.Family
	Cells  []board.Square
}

// String lists the group's squares, e.g. "a1+b2".
func (g Group) String() string {
	names := make([]string, len(g.Cells))
	for i, sq := range g.Cells {
		names[i] = sq.String()
	}
	return strings.Join(names, "+")
}

// OrthogonalPairs pairs each square of an even rank with its diagonal
// neighbour on the rank above: even files with +9, odd files with +7.
var OrthogonalPairs = func() []Group {
	groups := make([]Group, 0, 32)
	for _, start := range [2]board.Square{0, 1} {
		for sq := start; sq < 64; sq += 2 {
			if sq.Rank()%2 != 0 {
				continue
			}
			other := sq + 9
			if sq.File()%2 != 0 {
				other = sq + 7
			}
			groups = append(groups, Group{Family: board.Orthogonal, Cells: []board.Square{sq, other}})
		}
	}
	return groups
}()

// DiagonalQuads splits the board into the 16 2x2 blocks.
var DiagonalQuads = func() []Group {
	groups := make([]Group, 0, 16)
	for rank := 0; rank < 8; rank += 2 {
		for file := 0; file < 8; file += 2 {
			sq := board.NewSquare(file, rank)
			groups = append(groups, Group{
				Family: board.Diagonal,
				Cells:  []board.Square{sq, sq + 1, sq + 8, sq + 9},
			})
		}
	}
	return groups
}()

// Groups returns the static partition for a family.
func Groups(fam board.Family) []Group {
	if fam == board.Diagonal {
		return DiagonalQuads
	}
	return OrthogonalPairs
}

// GroupOf returns the group containing sq.
func GroupOf(sq board.Square, fam board.Family) (Group, error) {
	for _, g := range Groups(fam) {
		for _, c := range g.Cells {
			if c == sq {
				return g, nil
			}
		}
	}
	return Group{}, fmt.Errorf("no %v group contains %v", fam, sq)
}
