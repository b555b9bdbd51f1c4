package record

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/magic"
)

func TestEncode(t *testing.T) {
	c := magic.Candidate{Multiplier: 18446744073709551615, MinHash: 3, MaxHash: 4000, Width: 3997}
	assert.Equal(t, "3 4000 3997 18446744073709551615\n", Encode(c))

	back, err := ParseLine(Encode(c))
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want magic.Candidate
		err  error
	}{
		{"plain", "10 20 10 12345", magic.Candidate{Multiplier: 12345, MinHash: 10, MaxHash: 20, Width: 10}, nil},
		{"extra spaces", "  10\t20  10 12345  ", magic.Candidate{Multiplier: 12345, MinHash: 10, MaxHash: 20, Width: 10}, nil},
		{"bad min falls back", "x 20 8 7", magic.Candidate{Multiplier: 7, MinHash: FallbackMinHash, MaxHash: 20, Width: 8}, nil},
		{"bad min keeps width", "x 100 8 7", magic.Candidate{Multiplier: 7, MinHash: FallbackMinHash, MaxHash: 20, Width: 8}, nil},
		{"max follows width", "10 99 5 7", magic.Candidate{Multiplier: 7, MinHash: 10, MaxHash: 15, Width: 5}, nil},
		{"bad width from max", "10 25 ? 7", magic.Candidate{Multiplier: 7, MinHash: 10, MaxHash: 25, Width: 15}, nil},
		{"bad max from width", "10 ? 5 7", magic.Candidate{Multiplier: 7, MinHash: 10, MaxHash: 15, Width: 5}, nil},
		{"bad width and max", "10 ? ? 7", magic.Candidate{}, ErrMalformedRecord},
		{"max below min", "10 5 ? 7", magic.Candidate{}, ErrMalformedRecord},
		{"range overflows", "4294967295 0 5 7", magic.Candidate{}, ErrMalformedRecord},
		{"range past table", "65530 65540 10 7", magic.Candidate{}, ErrMalformedRecord},
		{"last slot", "65530 65535 5 7", magic.Candidate{Multiplier: 7, MinHash: 65530, MaxHash: 65535, Width: 5}, nil},
		{"bad multiplier", "10 20 10 -1", magic.Candidate{}, ErrMalformedRecord},
		{"short", "10 20 10", magic.Candidate{}, ErrShortLine},
		{"empty", "", magic.Candidate{}, ErrShortLine},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLine(tc.line)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "b_a1.csv", FileName(board.A1, board.Diagonal))
	assert.Equal(t, "r_h8.csv", FileName(board.H8, board.Orthogonal))
	assert.Equal(t, "r_e4.csv", FileName(board.E4, board.Orthogonal))
}

func TestSinkAndLoad(t *testing.T) {
	dir := t.TempDir()

	sink, err := OpenSink(dir, board.D4, board.Orthogonal)
	require.NoError(t, err)
	want := []magic.Candidate{
		{Multiplier: 1, MinHash: 0, MaxHash: 900, Width: 900},
		{Multiplier: 2, MinHash: 5, MaxHash: 805, Width: 800},
	}
	for _, c := range want {
		require.NoError(t, sink.Append(c))
	}
	require.NoError(t, sink.Close())

	// A second run appends instead of truncating.
	sink, err = OpenSink(dir, board.D4, board.Orthogonal)
	require.NoError(t, err)
	extra := magic.Candidate{Multiplier: 3, MinHash: 1, MaxHash: 2, Width: 1}
	require.NoError(t, sink.Append(extra))
	require.NoError(t, sink.Close())

	got, rejected, err := Load(dir, board.D4, board.Orthogonal)
	require.NoError(t, err)
	assert.Zero(t, rejected)
	assert.Equal(t, append(want, extra), got)
}

func TestConcurrentAppend(t *testing.T) {
	dir := t.TempDir()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			sink, err := OpenSink(dir, board.A1, board.Diagonal)
			if err != nil {
				t.Error(err)
				return
			}
			defer sink.Close()
			for i := 0; i < 100; i++ {
				sink.Append(magic.Candidate{Multiplier: uint64(w*1000 + i), MinHash: 1, MaxHash: 3, Width: 2})
			}
		}(w)
	}
	wg.Wait()

	got, rejected, err := Load(dir, board.A1, board.Diagonal)
	require.NoError(t, err)
	assert.Zero(t, rejected)
	assert.Len(t, got, 400)
}

func TestRead(t *testing.T) {
	input := strings.Join([]string{
		"1 10 9 100",
		"",
		"garbage",
		"2 20 18 nope",
		"x 30 25 300",
		"3 33 30",
	}, "\n")

	got, rejected, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, []magic.Candidate{
		{Multiplier: 100, MinHash: 1, MaxHash: 10, Width: 9},
		{Multiplier: 300, MinHash: FallbackMinHash, MaxHash: FallbackMinHash + 25, Width: 25},
	}, got)
}

func TestLoadAllAndSummarize(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("r_a1.csv", "0 100 100 1\n4 54 50 2\n9 79 70 3\n")
	write("r_b1.csv", "1 2 1 9\nbad bad bad bad\n")
	write("b_a1.csv", "0 1 1 1\n")

	pools, missing, rejected, err := LoadAll(dir, board.Orthogonal)
	require.NoError(t, err)
	assert.Len(t, missing, 62)
	assert.Equal(t, 1, rejected)
	assert.Len(t, pools[board.A1], 3)
	assert.Len(t, pools[board.B1], 1)

	summaries := Summarize(&pools, board.Orthogonal)
	require.Len(t, summaries, 64)
	assert.Equal(t, 3, summaries[board.A1].Count)
	assert.Equal(t, uint64(2), summaries[board.A1].Best.Multiplier)
	assert.Equal(t, uint32(50), summaries[board.A1].Best.Width)
	assert.Zero(t, summaries[board.H8].Count)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	content := "0 100 100 1\n4 54 50 2\n9 79 70 3\n0 50 50 4\nnope\n1 2 3 x\n"
	require.NoError(t, os.WriteFile(Path(dir, board.A1, board.Orthogonal), []byte(content), 0644))

	removed, err := Prune(dir, board.Orthogonal, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	got, _, err := Load(dir, board.A1, board.Orthogonal)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].Multiplier)
	assert.Equal(t, uint64(4), got[1].Multiplier)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	best, ok := Best([]magic.Candidate{
		{Multiplier: 1, Width: 30},
		{Multiplier: 2, Width: 10},
		{Multiplier: 3, Width: 10},
	})
	require.True(t, ok)
	assert.Equal(t, uint64(2), best.Multiplier)
}
