package board

import "fmt"

// Family is the movement pattern of a sliding piece.
type Family uint8

const (
	Diagonal   Family = iota // bishop-like
	Orthogonal               // rook-like
)

// Families lists every family in a stable order.
var Families = [2]Family{Diagonal, Orthogonal}

// String returns the piece name used in logs and file names.
func (f Family) String() string {
	switch f {
	case Diagonal:
		return "bishop"
	case Orthogonal:
		return "rook"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// Letter returns the single-character prefix of the family's record streams.
func (f Family) Letter() byte {
	if f == Diagonal {
		return 'b'
	}
	return 'r'
}

// ParseFamily accepts "bishop"/"diagonal"/"b" and "rook"/"orthogonal"/"r".
func ParseFamily(s string) (Family, error) {
	switch s {
	case "bishop", "diagonal", "b":
		return Diagonal, nil
	case "rook", "orthogonal", "r":
		return Orthogonal, nil
	}
	return 0, fmt.Errorf("invalid piece family: %q", s)
}

// direction is a unit step in (file, rank).
type direction struct {
	df, dr int
}

var (
	diagonalDirs = [4]direction{
		{1, 1},   // Northeast
		{-1, 1},  // Northwest
		{1, -1},  // Southeast
		{-1, -1}, // Southwest
	}
	orthogonalDirs = [4]direction{
		{0, 1},  // North
		{0, -1}, // South
		{1, 0},  // East
		{-1, 0}, // West
	}
)

func (f Family) directions() *[4]direction {
	if f == Diagonal {
		return &diagonalDirs
	}
	return &orthogonalDirs
}
