// Package generate runs magic searches for many squares in parallel and
// appends every candidate found to its square's stream.
package generate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/magic"
	"github.com/hailam/slidermagic/internal/record"
)

// Unit is one independent piece of work.
type Unit struct {
	Square board.Square
	Family board.Family
}

func (u Unit) String() string {
	return u.Family.String() + " " + u.Square.String()
}

// Units lists the units of the given families, either for every square or
// only for target when it is not nil.
func Units(fams []board.Family, target *board.Square) []Unit {
	var units []Unit
	for _, fam := range fams {
		if target != nil {
			units = append(units, Unit{Square: *target, Family: fam})
			continue
		}
		for _, sq := range board.AllSquares() {
			units = append(units, Unit{Square: sq, Family: fam})
		}
	}
	return units
}

// Result is the outcome of one unit.
type Result struct {
	Unit      Unit
	Found     int // candidates appended
	Exhausted int // runs that hit the attempt budget
	Lost      int // candidates found but not written
}

// Report collects the results of a run.
type Report struct {
	mu      sync.Mutex
	Results []Result
}

func (r *Report) add(res Result) {
	r.mu.Lock()
	r.Results = append(r.Results, res)
	r.mu.Unlock()
}

// Totals sums the per-unit counters.
func (r *Report) Totals() Result {
	var t Result
	for _, res := range r.Results {
		t.Found += res.Found
		t.Exhausted += res.Exhausted
		t.Lost += res.Lost
	}
	return t
}

// SinkOpener opens the stream of one unit.
type SinkOpener func(u Unit) (record.Sink, func() error, error)

// FileSinks opens the stream files in dir.
func FileSinks(dir string) SinkOpener {
	return func(u Unit) (record.Sink, func() error, error) {
		s, err := record.OpenSink(dir, u.Square, u.Family)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// Runner searches Runs candidates per unit on a pool of Workers goroutines.
type Runner struct {
	Open        SinkOpener
	Runs        int
	Bits        uint8 // 0 selects the per-square minimum
	MaxAttempts uint64
	MinTopBits  int
	Workers     int
	Seed        uint64
	Logger      logr.Logger
}

// NewRunner returns a runner writing to the streams in dir with default parameters.
func NewRunner(dir string, runs int) *Runner {
	return &Runner{
		Open:        FileSinks(dir),
		Runs:        runs,
		MaxAttempts: magic.DefaultMaxAttempts,
		MinTopBits:  magic.DefaultMinTopBits,
		Workers:     runtime.NumCPU(),
		Logger:      logr.Discard(),
	}
}

// Run processes every unit. Exhausted searches are counted and do not stop
// other units; failing to open a stream aborts the run.
func (r *Runner) Run(ctx context.Context, units []Unit) (*Report, error) {
	report := &Report{}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(r.Workers, 1))
	for _, u := range units {
		eg.Go(func() error {
			res, err := r.runUnit(ctx, u)
			if err != nil {
				return err
			}
			report.add(res)
			return nil
		})
	}

	err := eg.Wait()
	return report, err
}

func (r *Runner) runUnit(ctx context.Context, u Unit) (Result, error) {
	res := Result{Unit: u}
	log := r.Logger.WithValues("family", u.Family.String(), "square", u.Square.String())

	bits := r.Bits
	if bits == 0 {
		bits = magic.DefaultBits(u.Square, u.Family)
	}

	searcher, err := magic.NewSearcher(u.Square, u.Family, bits)
	if err != nil {
		return res, err
	}

	sink, closeSink, err := r.Open(u)
	if err != nil {
		return res, fmt.Errorf("%s: %w", u, err)
	}
	defer closeSink()

	rng := rand.New(rand.NewPCG(UnitSeed(r.Seed, u), r.Seed))
	for run := 0; run < r.Runs; run++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		c, err := searcher.Search(rng, r.MaxAttempts, r.MinTopBits)
		if errors.Is(err, magic.ErrSearchExhausted) {
			res.Exhausted++
			log.Info("search exhausted", "run", run, "attempts", r.MaxAttempts, "bits", searcher.Bits())
			continue
		}
		if err != nil {
			return res, err
		}

		if err := sink.Append(c); err != nil {
			res.Lost++
			log.Error(err, "candidate lost", "magic", c.Multiplier)
			continue
		}
		res.Found++
		log.V(1).Info("candidate", "magic", c.Multiplier, "min", c.MinHash, "width", c.Width)
	}

	log.Info("done", "found", res.Found, "exhausted", res.Exhausted)
	return res, nil
}

// UnitSeed derives an independent seed for a unit so that no generator
// state is shared between workers and a fixed seed reproduces a run.
func UnitSeed(seed uint64, u Unit) uint64 {
	var buf [10]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	buf[8] = byte(u.Family)
	buf[9] = byte(u.Square)
	return xxhash.Sum64(buf[:])
}
