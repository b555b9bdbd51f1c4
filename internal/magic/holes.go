package magic

import "github.com/hailam/slidermagic/internal/board"

// DefaultMinHoleSize is the smallest unused run worth reporting.
const DefaultMinHoleSize = 50

// Hole is a maximal run of unused slots inside a candidate's hash range.
type Hole struct {
	Position int
	Size     int
}

// UsedSlots marks every slot of the 2^tableBits table touched by some occupancy.
func UsedSlots(sq board.Square, fam board.Family, tableBits uint8, c Candidate) []bool {
	mask := board.RelevantMask(sq, fam)
	used := make([]bool, 1<<tableBits)
	for _, occ := range board.Occupancies(mask) {
		used[hashKey(occ, mask, c.Multiplier, tableBits)] = true
	}
	return used
}

// FindHoles reports the unused runs in [MinHash, MaxHash] longer than minSize.
func FindHoles(sq board.Square, fam board.Family, tableBits uint8, c Candidate, minSize int) []Hole {
	used := UsedSlots(sq, fam, tableBits, c)
	return findRuns(used, int(c.MinHash), int(c.MaxHash), minSize)
}

func findRuns(used []bool, lo, hi, minSize int) []Hole {
	var holes []Hole
	hi = min(hi, len(used)-1)
	start := -1
	for j := lo; j <= hi+1; j++ {
		free := j <= hi && !used[j]
		switch {
		case free && start < 0:
			start = j
		case !free && start >= 0:
			if size := j - start; size > minSize {
				holes = append(holes, Hole{Position: start, Size: size})
			}
			start = -1
		}
	}
	return holes
}

// HoleSlots sums the sizes of holes.
func HoleSlots(holes []Hole) int {
	total := 0
	for _, h := range holes {
		total += h.Size
	}
	return total
}
