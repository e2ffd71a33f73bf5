package simplify

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/logger"
)

func writeIndex(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final_index.idx")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runSimplify(t *testing.T, in string, workers int) (string, Stats) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "simplified_index.txt")
	stats, err := New(workers, "", logger.Discard(), nil).Run(context.Background(), in, out)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	return string(data), stats
}

func TestRun_KeepsWordAndCount(t *testing.T) {
	in := writeIndex(t, "ano 3 0 1 2\nbat 1 1\ncat 2 5 12\n")

	got, stats := runSimplify(t, in, 1)

	assert.Equal(t, "ano 3\nbat 1\ncat 2\n", got)
	assert.Equal(t, int64(3), stats.Lines)
}

func TestRun_EveryLineExactlyOnceForAnySplit(t *testing.T) {
	// Given: an index with lines of very different lengths
	rng := rand.New(rand.NewSource(3))
	var in, want strings.Builder
	for i := 0; i < 300; i++ {
		n := 1 + rng.Intn(40)
		fmt.Fprintf(&in, "w%03d %d", i, n)
		for j := 0; j < n; j++ {
			fmt.Fprintf(&in, " %d", rng.Intn(100000))
		}
		in.WriteByte('\n')
		fmt.Fprintf(&want, "w%03d %d\n", i, n)
	}
	path := writeIndex(t, in.String())

	// When/Then: any number of ranges yields the same listing
	for _, workers := range []int{1, 2, 3, 7, 16, 64} {
		got, stats := runSimplify(t, path, workers)
		assert.Equal(t, want.String(), got, "workers=%d", workers)
		assert.Equal(t, int64(300), stats.Lines)
	}
}

func TestRun_RangeStartingOnLineBoundary(t *testing.T) {
	// Given: two four-byte lines, so the second range starts exactly on a line
	path := writeIndex(t, "a 1\nb 2\n")

	got, stats := runSimplify(t, path, 2)

	assert.Equal(t, "a 1\nb 2\n", got)
	assert.Equal(t, 2, stats.Ranges)
}

func TestRun_MoreWorkersThanBytes(t *testing.T) {
	path := writeIndex(t, "x 1 0")

	got, stats := runSimplify(t, path, 100)

	assert.Equal(t, "x 1\n", got)
	assert.Equal(t, 5, stats.Ranges)
}

func TestRun_EmptyInput(t *testing.T) {
	got, stats := runSimplify(t, writeIndex(t, ""), 4)

	assert.Empty(t, got)
	assert.Zero(t, stats.Ranges)
}

func TestRun_SkipsLinesWithoutCount(t *testing.T) {
	got, stats := runSimplify(t, writeIndex(t, "ok 1 3\nbroken\n\nfine 2 4 5\n"), 1)

	assert.Equal(t, "ok 1\nfine 2\n", got)
	assert.Equal(t, int64(2), stats.Skipped)
}

func TestRun_LeavesNoRangeFiles(t *testing.T) {
	in := writeIndex(t, "a 1 0\nb 1 1\nc 1 2\n")
	tmp := t.TempDir()
	out := filepath.Join(t.TempDir(), "out.txt")

	_, err := New(3, tmp, logger.Discard(), nil).Run(context.Background(), in, out)
	require.NoError(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_MissingInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")

	_, err := New(2, "", logger.Discard(), nil).Run(context.Background(), filepath.Join(t.TempDir(), "nope"), out)

	assert.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestRun_Cancelled(t *testing.T) {
	in := writeIndex(t, strings.Repeat("w 1 0\n", 100))
	out := filepath.Join(t.TempDir(), "out.txt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(2, "", logger.Discard(), nil).Run(ctx, in, out)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, out)
}

func TestSplit(t *testing.T) {
	assert.Nil(t, split(0, 4))
	assert.Equal(t, []byteRange{{0, 3}, {3, 6}, {6, 10}}, split(10, 3))
	assert.Equal(t, []byteRange{{0, 1}, {1, 2}}, split(2, 8))
}
