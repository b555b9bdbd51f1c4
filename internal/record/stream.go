package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/magic"
)

// Sink accepts candidates for one stream.
type Sink interface {
	Append(c magic.Candidate) error
}

// FileSink appends record lines to one stream file.
// Each candidate is written with a single write call on an O_APPEND file,
// so concurrent runs on the same stream interleave only at line granularity.
type FileSink struct {
	f *os.File
}

// OpenSink opens (creating if needed) the stream for a square.
func OpenSink(dir string, sq board.Square, fam board.Family) (*FileSink, error) {
	f, err := os.OpenFile(Path(dir, sq, fam), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %v stream for %v: %w", fam, sq, err)
	}
	return &FileSink{f: f}, nil
}

// Append writes one record line.
func (s *FileSink) Append(c magic.Candidate) error {
	_, err := io.WriteString(s.f, Encode(c))
	return err
}

// Close closes the stream file.
func (s *FileSink) Close() error {
	return s.f.Close()
}

// Read parses every record line of r. Short lines are skipped silently;
// rejected counts lines dropped as malformed.
func Read(r io.Reader) (cands []magic.Candidate, rejected int, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c, err := ParseLine(scanner.Text())
		switch {
		case err == nil:
			cands = append(cands, c)
		case errors.Is(err, ErrShortLine):
		default:
			rejected++
		}
	}
	return cands, rejected, scanner.Err()
}

// Load reads the full stream of one square.
func Load(dir string, sq board.Square, fam board.Family) ([]magic.Candidate, int, error) {
	f, err := os.Open(Path(dir, sq, fam))
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	return Read(f)
}

// Pools holds the candidates of every square of one family.
type Pools [64][]magic.Candidate

// LoadAll loads every stream of a family. Squares without a stream file are
// returned in missing and keep an empty pool.
func LoadAll(dir string, fam board.Family) (pools Pools, missing []board.Square, rejected int, err error) {
	for _, sq := range board.AllSquares() {
		cands, bad, err := Load(dir, sq, fam)
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, sq)
			continue
		}
		if err != nil {
			return pools, missing, rejected, fmt.Errorf("load %v stream for %v: %w", fam, sq, err)
		}
		pools[sq] = cands
		rejected += bad
	}
	return pools, missing, rejected, nil
}

// Summary is the state of one stream.
type Summary struct {
	Square board.Square    `json:"square"`
	Family board.Family    `json:"family"`
	Count  int             `json:"count"`
	Best   magic.Candidate `json:"best"` // Smallest width; zero when Count is 0
}

// Summarize reports the number of candidates and the narrowest one per square.
func Summarize(pools *Pools, fam board.Family) []Summary {
	out := make([]Summary, 0, len(pools))
	for sq, cands := range pools {
		best, _ := Best(cands)
		out = append(out, Summary{Square: board.Square(sq), Family: fam, Count: len(cands), Best: best})
	}
	return out
}

// Best returns the narrowest candidate, the first one on ties.
func Best(cands []magic.Candidate) (magic.Candidate, bool) {
	if len(cands) == 0 {
		return magic.Candidate{}, false
	}
	return slices.MinFunc(cands, byWidth), true
}

func byWidth(a, b magic.Candidate) int {
	return int(a.Width) - int(b.Width)
}

// DefaultKeep is how many candidates Prune leaves per stream.
const DefaultKeep = 20

// Prune rewrites every stream of a family keeping the keep narrowest
// candidates, earlier lines first on ties. It returns the number of lines removed.
func Prune(dir string, fam board.Family, keep int) (int, error) {
	removed := 0
	for _, sq := range board.AllSquares() {
		n, err := pruneStream(dir, sq, fam, keep)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func pruneStream(dir string, sq board.Square, fam board.Family, keep int) (int, error) {
	path := Path(dir, sq, fam)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cands, rejected, err := Read(f)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	slices.SortStableFunc(cands, byWidth)
	removed := rejected
	if len(cands) > keep {
		removed += len(cands) - keep
		cands = cands[:keep]
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return 0, err
	}
	tmp.Chmod(0644)
	w := bufio.NewWriter(tmp)
	for _, c := range cands {
		w.WriteString(Encode(c))
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return removed, nil
}
