package consolidate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/magic"
	"github.com/hailam/slidermagic/internal/record"
)

// ErrEmptyPool means a square of a group has no candidate to choose from.
var ErrEmptyPool = errors.New("empty candidate pool")

// SharedSize is the span of the union of the candidates' ranges:
// max(min+width) - min(min).
func SharedSize(cs ...magic.Candidate) uint32 {
	lo, hi := sharedRange(cs)
	return hi - lo
}

func sharedRange(cs []magic.Candidate) (lo, hi uint32) {
	lo, hi = math.MaxUint32, 0
	for _, c := range cs {
		lo = min(lo, c.MinHash)
		hi = max(hi, c.End())
	}
	return lo, hi
}

// Choice is the best combination found for one group.
type Choice struct {
	Group       Group             `json:"-"`
	Cells       []board.Square    `json:"cells"`
	Size        uint32            `json:"size"`
	Start       uint32            `json:"start"`
	Multipliers []uint64          `json:"multipliers"`
	Picks       []magic.Candidate `json:"picks"`
}

// Optimize picks one candidate per square of g so that the shared range is as
// small as possible. pools[i] holds the candidates of g.Cells[i]. The search
// covers the whole cartesian product; a partial combination whose span already
// reaches the best size is cut, which never drops a strictly better one. Ties
// keep the first combination in pool order.
func Optimize(g Group, pools [][]magic.Candidate) (Choice, error) {
	if len(g.Cells) == 0 || len(pools) != len(g.Cells) {
		return Choice{}, fmt.Errorf("group %v: %d pools for %d squares", g, len(pools), len(g.Cells))
	}
	for i, pool := range pools {
		if len(pool) == 0 {
			return Choice{}, fmt.Errorf("%w: %v on %v", ErrEmptyPool, g.Family, g.Cells[i])
		}
	}

	o := optimizer{
		pools:    pools,
		current:  make([]int, len(pools)),
		best:     make([]int, len(pools)),
		bestSize: math.MaxUint32,
	}
	o.walk(0, math.MaxUint32, 0)

	picks := make([]magic.Candidate, len(pools))
	mults := make([]uint64, len(pools))
	for i, j := range o.best {
		picks[i] = pools[i][j]
		mults[i] = picks[i].Multiplier
	}
	lo, hi := sharedRange(picks)

	return Choice{
		Group:       g,
		Cells:       g.Cells,
		Size:        hi - lo,
		Start:       lo,
		Multipliers: mults,
		Picks:       picks,
	}, nil
}

type optimizer struct {
	pools    [][]magic.Candidate
	current  []int
	best     []int
	bestSize uint32
}

func (o *optimizer) walk(depth int, lo, hi uint32) {
	if depth == len(o.pools) {
		if hi-lo < o.bestSize {
			o.bestSize = hi - lo
			copy(o.best, o.current)
		}
		return
	}

	for j, c := range o.pools[depth] {
		nlo, nhi := min(lo, c.MinHash), max(hi, c.End())
		if nhi-nlo >= o.bestSize {
			continue
		}
		o.current[depth] = j
		o.walk(depth+1, nlo, nhi)
	}
}

// Plan is the consolidated layout of one family.
type Plan struct {
	Family     board.Family `json:"family"`
	Choices    []Choice     `json:"choices"`
	TotalSlots uint64       `json:"total_slots"`
}

// Bytes is the size of the packed tables with 8-byte entries.
func (p *Plan) Bytes() uint64 {
	return p.TotalSlots * 8
}

// BuildPlan optimizes every group of the family's partition. Groups are
// independent and run concurrently; pools are only read. The first failing
// group cancels the groups that have not started yet.
func BuildPlan(ctx context.Context, fam board.Family, pools *record.Pools) (*Plan, error) {
	groups := Groups(fam)
	choices := make([]Choice, len(groups))

	eg, ctx := errgroup.WithContext(ctx)
	for i, g := range groups {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			gp := make([][]magic.Candidate, len(g.Cells))
			for k, sq := range g.Cells {
				gp[k] = pools[sq]
			}
			c, err := Optimize(g, gp)
			if err != nil {
				return err
			}
			choices[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	plan := &Plan{Family: fam, Choices: choices}
	for _, c := range choices {
		plan.TotalSlots += uint64(c.Size)
	}
	return plan, nil
}
