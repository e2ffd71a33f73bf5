package block

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/tokenizer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLayout(dir string) Layout {
	return Layout{Dir: dir, Prefix: "block_", Ext: ".idx"}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriter_IndexBlock(t *testing.T) {
	// Given: the second block of a corpus, starting at global position 2
	dir := filepath.Join(t.TempDir(), "blocks")
	w := NewWriter(testLayout(dir), discardLogger())
	b := tokenizer.Block{Index: 1, Offset: 2, Tokens: []string{"zeta", "alpha", "zeta", "beta"}}

	// When: indexing it
	sum, err := w.IndexBlock(b)

	// Then: the directory is created and words are written sorted with global positions
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "block_1.idx"), sum.Path)
	assert.Equal(t, 3, sum.Words)
	assert.Equal(t, 4, sum.Tokens)
	assert.Equal(t, "alpha 1 3\nbeta 1 5\nzeta 2 2 4\n", readFile(t, sum.Path))
}

func TestWriter_IndexBlock_AccentedScenario(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(testLayout(dir), discardLogger())

	_, err := w.IndexBlock(tokenizer.Block{Index: 0, Offset: 0, Tokens: []string{"ano", "ano"}})
	require.NoError(t, err)
	_, err = w.IndexBlock(tokenizer.Block{Index: 1, Offset: 2, Tokens: []string{"ano"}})
	require.NoError(t, err)

	assert.Equal(t, "ano 2 0 1\n", readFile(t, filepath.Join(dir, "block_0.idx")))
	assert.Equal(t, "ano 1 2\n", readFile(t, filepath.Join(dir, "block_1.idx")))
}

func TestWriter_IndexBlock_ByteWiseOrder(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(testLayout(dir), discardLogger())

	sum, err := w.IndexBlock(tokenizer.Block{Tokens: []string{"b", "a1", "a", "10", "9"}})
	require.NoError(t, err)

	r := posting.NewReader(mustOpen(t, sum.Path))
	var words []string
	for {
		e, _, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		words = append(words, e.Word)
	}
	assert.Equal(t, []string{"10", "9", "a", "a1", "b"}, words)
}

func TestWriter_IndexBlock_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "block_0.idx"), []byte("stale 1 99\n"), 0644))
	w := NewWriter(testLayout(dir), discardLogger())

	sum, err := w.IndexBlock(tokenizer.Block{Tokens: []string{"fresh"}})

	require.NoError(t, err)
	assert.Equal(t, "fresh 1 0\n", readFile(t, sum.Path))
	_, err = os.Stat(sum.Path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is not left behind")
}

func TestWriter_IndexBlock_UnwritableDirectory(t *testing.T) {
	// Given: a block directory path that is actually a file
	parent := t.TempDir()
	notDir := filepath.Join(parent, "blocks")
	require.NoError(t, os.WriteFile(notDir, nil, 0644))
	w := NewWriter(testLayout(notDir), discardLogger())

	// When: indexing
	_, err := w.IndexBlock(tokenizer.Block{Tokens: []string{"x"}})

	// Then: the block fails without panicking
	assert.Error(t, err)
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLayout_BlockNumber(t *testing.T) {
	l := testLayout("")
	tests := []struct {
		name string
		n    int
		ok   bool
	}{
		{"block_0.idx", 0, true},
		{"block_42.idx", 42, true},
		{"block_.idx", 0, false},
		{"block_x1.idx", 0, false},
		{"block_-3.idx", 0, false},
		{"block_+1.idx", 0, false},
		{"block_01.idx", 0, false},
		{"block_00.idx", 0, false},
		{"other_3.idx", 0, false},
		{"block_3.txt", 0, false},
	}
	for _, tt := range tests {
		n, ok := l.BlockNumber(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.n, n, tt.name)
	}
	assert.Equal(t, "block_7.idx", l.Name(7))
}

func TestLayout_List(t *testing.T) {
	// Given: numbered block files written out of order, unnumbered ones, and noise
	dir := t.TempDir()
	for _, name := range []string{
		"block_10.idx", "block_2.idx", "block_0.idx",
		"zzz.idx", "block_extra.idx",
		"block_1.idx.tmp", "notes.txt", ".lock",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "block_5.idx"), 0755))

	// When: listing
	paths, err := testLayout(dir).List()

	// Then: numbered ascending by number, then unnumbered lexicographically
	require.NoError(t, err)
	want := []string{"block_0.idx", "block_2.idx", "block_10.idx", "block_extra.idx", "zzz.idx"}
	require.Len(t, paths, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(dir, name), paths[i])
	}
}

func TestLayout_List_NonCanonicalNumbersSortByName(t *testing.T) {
	// Given: three names that all parse as 1 with a lenient integer parser
	dir := t.TempDir()
	for _, name := range []string{"block_01.idx", "block_1.idx", "block_+1.idx", "block_0.idx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	// When: listing
	paths, err := testLayout(dir).List()

	// Then: only block_1 is block 1; the others follow by name
	require.NoError(t, err)
	want := []string{"block_0.idx", "block_1.idx", "block_+1.idx", "block_01.idx"}
	require.Len(t, paths, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(dir, name), paths[i])
	}
}

func TestLayout_List_EmptyAndMissing(t *testing.T) {
	paths, err := testLayout(t.TempDir()).List()
	require.NoError(t, err)
	assert.Empty(t, paths)

	paths, err = testLayout(filepath.Join(t.TempDir(), "absent")).List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}
