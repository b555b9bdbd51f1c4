package consolidate

import (
	"context"
	"math"
	"strings"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/magic"
	"github.com/hailam/slidermagic/internal/record"
)

func cand(mult uint64, lo, width uint32) magic.Candidate {
	return magic.Candidate{Multiplier: mult, MinHash: lo, MaxHash: lo + width, Width: width}
}

func randomPool(rng *rand.Rand, n int, base uint64) []magic.Candidate {
	pool := make([]magic.Candidate, n)
	for i := range pool {
		lo := uint32(rng.IntN(1000))
		pool[i] = cand(base+uint64(i), lo, uint32(500+rng.IntN(3000)))
	}
	return pool
}

func TestPartitions(t *testing.T) {
	for _, fam := range board.Families {
		seen := make(map[board.Square]int)
		for _, g := range Groups(fam) {
			assert.Equal(t, fam, g.Family)
			for _, sq := range g.Cells {
				seen[sq]++
			}
		}
		assert.Len(t, seen, 64, "%v partition must cover the board", fam)
		for sq, n := range seen {
			assert.Equal(t, 1, n, "%v square %v appears %d times", fam, sq, n)
		}
	}

	assert.Len(t, OrthogonalPairs, 32)
	assert.Len(t, DiagonalQuads, 16)
	assert.Equal(t, []board.Square{0, 9}, OrthogonalPairs[0].Cells)
	assert.Equal(t, []board.Square{1, 8}, OrthogonalPairs[16].Cells)
	assert.Equal(t, []board.Square{0, 1, 8, 9}, DiagonalQuads[0].Cells)
	assert.Equal(t, "a1+b2", OrthogonalPairs[0].String())

	g, err := GroupOf(board.B2, board.Orthogonal)
	require.NoError(t, err)
	assert.Equal(t, []board.Square{0, 9}, g.Cells)
}

func TestSharedSize(t *testing.T) {
	assert.Equal(t, uint32(10), SharedSize(cand(1, 0, 10), cand(2, 2, 5)))
	assert.Equal(t, uint32(30), SharedSize(cand(1, 0, 10), cand(2, 20, 10)))
	assert.Equal(t, uint32(7), SharedSize(cand(1, 3, 7)))
}

func TestOptimizePairMatchesScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	g := OrthogonalPairs[3]

	for trial := 0; trial < 20; trial++ {
		a := randomPool(rng, 25, 100)
		b := randomPool(rng, 25, 200)

		// Plain pairwise scan.
		want := uint32(math.MaxUint32)
		var wantA, wantB uint64
		for _, x := range a {
			for _, y := range b {
				if s := SharedSize(x, y); s < want {
					want, wantA, wantB = s, x.Multiplier, y.Multiplier
				}
			}
		}

		got, err := Optimize(g, [][]magic.Candidate{a, b})
		require.NoError(t, err)
		assert.Equal(t, want, got.Size)
		assert.Equal(t, []uint64{wantA, wantB}, got.Multipliers)
		assert.Equal(t, SharedSize(got.Picks...), got.Size)
		assert.Equal(t, min(got.Picks[0].MinHash, got.Picks[1].MinHash), got.Start)
	}
}

func TestOptimizeQuadMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	g := DiagonalQuads[5]

	for trial := 0; trial < 5; trial++ {
		pools := make([][]magic.Candidate, 4)
		for i := range pools {
			pools[i] = randomPool(rng, 8, uint64(i*100))
		}

		want := uint32(math.MaxUint32)
		for _, a := range pools[0] {
			for _, b := range pools[1] {
				for _, c := range pools[2] {
					for _, d := range pools[3] {
						want = min(want, SharedSize(a, b, c, d))
					}
				}
			}
		}

		got, err := Optimize(g, pools)
		require.NoError(t, err)
		assert.Equal(t, want, got.Size)
		assert.Len(t, got.Multipliers, 4)
	}
}

func TestOptimizeTieKeepsFirst(t *testing.T) {
	g := OrthogonalPairs[0]
	got, err := Optimize(g, [][]magic.Candidate{
		{cand(1, 0, 10), cand(2, 0, 10)},
		{cand(3, 0, 10), cand(4, 0, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, got.Multipliers)
	assert.Equal(t, uint32(10), got.Size)
}

func TestOptimizeEmptyPool(t *testing.T) {
	g := OrthogonalPairs[0]
	_, err := Optimize(g, [][]magic.Candidate{{cand(1, 0, 1)}, nil})
	assert.ErrorIs(t, err, ErrEmptyPool)

	_, err = Optimize(g, [][]magic.Candidate{{cand(1, 0, 1)}})
	assert.Error(t, err)
}

func TestBuildPlan(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	var pools record.Pools
	for sq := range pools {
		pools[sq] = randomPool(rng, 4, uint64(sq)*10)
	}

	plan, err := BuildPlan(context.Background(), board.Orthogonal, &pools)
	require.NoError(t, err)
	require.Len(t, plan.Choices, 32)

	var total uint64
	for i, c := range plan.Choices {
		assert.Equal(t, OrthogonalPairs[i].Cells, c.Cells)
		total += uint64(c.Size)
	}
	assert.Equal(t, total, plan.TotalSlots)
	assert.Equal(t, total*8, plan.Bytes())

	pools[board.H8] = nil
	_, err = BuildPlan(context.Background(), board.Diagonal, &pools)
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestBuildPlanCancelled(t *testing.T) {
	var pools record.Pools
	for sq := range pools {
		pools[sq] = []magic.Candidate{cand(1, 0, 10)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildPlan(ctx, board.Orthogonal, &pools)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimizeIgnoresOutOfRangeRecords(t *testing.T) {
	a1, _, err := record.Read(strings.NewReader("4294967295 0 5 7\n100 3000 2900 11\n"))
	require.NoError(t, err)
	b2, _, err := record.Read(strings.NewReader("0 4 4 9\n"))
	require.NoError(t, err)
	require.Len(t, a1, 1)

	got, err := Optimize(OrthogonalPairs[0], [][]magic.Candidate{a1, b2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 9}, got.Multipliers)
	assert.Equal(t, uint32(0), got.Start)
	assert.Equal(t, uint32(3000), got.Size)

	for _, c := range got.Picks {
		assert.Equal(t, c.MaxHash, c.MinHash+c.Width)
	}
}
