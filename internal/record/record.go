// Package record reads and writes the per-square candidate streams.
//
// Each (square, family) has its own append-only text file in the magic folder,
// one candidate per line: "minHash maxHash width multiplier".
package record

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/magic"
)

// FallbackMinHash replaces an unreadable first field.
const FallbackMinHash = 12

var (
	ErrShortLine       = errors.New("record line has fewer than 4 fields")
	ErrMalformedRecord = errors.New("malformed record")
)

// Encode formats a candidate as one newline-terminated record line.
func Encode(c magic.Candidate) string {
	return fmt.Sprintf("%d %d %d %d\n", c.MinHash, c.MaxHash, c.Width, c.Multiplier)
}

// ParseLine decodes one record line. An unreadable min hash falls back to
// FallbackMinHash; an unreadable width is rebuilt from the max hash. The max
// hash is always min+width. A line without a readable multiplier, or whose
// range does not fit a table of 1<<magic.MaxBits slots, is rejected.
func ParseLine(line string) (magic.Candidate, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return magic.Candidate{}, ErrShortLine
	}

	mult, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return magic.Candidate{}, fmt.Errorf("%w: multiplier %q", ErrMalformedRecord, fields[3])
	}

	minHash, err := parseU32(fields[0])
	if err != nil {
		minHash = FallbackMinHash
	}

	width, err := parseU32(fields[2])
	if err != nil {
		maxHash, maxErr := parseU32(fields[1])
		if maxErr != nil || maxHash < minHash {
			return magic.Candidate{}, fmt.Errorf("%w: width %q, max %q", ErrMalformedRecord, fields[2], fields[1])
		}
		width = maxHash - minHash
	}

	if uint64(minHash)+uint64(width) >= 1<<magic.MaxBits {
		return magic.Candidate{}, fmt.Errorf("%w: range %d+%d outside the table", ErrMalformedRecord, minHash, width)
	}

	return magic.Candidate{
		Multiplier: mult,
		MinHash:    minHash,
		MaxHash:    minHash + width,
		Width:      width,
	}, nil
}

func parseU32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	return uint32(n), err
}

// FileName returns the stream name for a square, e.g. "b_a1.csv".
func FileName(sq board.Square, fam board.Family) string {
	return fmt.Sprintf("%c_%s.csv", fam.Letter(), sq)
}

// Path returns the stream path inside dir.
func Path(dir string, sq board.Square, fam board.Family) string {
	return filepath.Join(dir, FileName(sq, fam))
}
