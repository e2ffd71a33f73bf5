// Package block builds the partial index of one block and persists it as a
// sorted block file, and discovers block files for merging.
package block

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/logger"
)

// Summary describes a written block file.
type Summary struct {
	Block  int
	Path   string
	Words  int
	Tokens int
}

// Writer turns blocks into block files under a Layout.
type Writer struct {
	layout Layout
	logger *slog.Logger
}

// NewWriter creates a Writer for the given layout.
func NewWriter(layout Layout, log *slog.Logger) *Writer {
	return &Writer{
		layout: layout,
		logger: logger.WithComponent(log, "block-writer"),
	}
}

// IndexBlock maps every distinct token of b to the global positions it
// occupies and writes one line per token, in byte-wise ascending token order.
// The file is written under a temporary name and renamed into place, so a
// block file is never visible half-written. An existing file for the same
// block is replaced.
func (w *Writer) IndexBlock(b tokenizer.Block) (Summary, error) {
	postings := make(map[string][]int64)
	for i, tok := range b.Tokens {
		postings[tok] = append(postings[tok], b.Offset+int64(i))
	}
	words := make([]string, 0, len(postings))
	for word := range postings {
		words = append(words, word)
	}
	slices.Sort(words)

	if err := os.MkdirAll(w.layout.Dir, 0755); err != nil {
		return Summary{}, fmt.Errorf("creating block directory: %w", err)
	}
	finalPath := w.layout.Path(b.Index)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Summary{}, fmt.Errorf("creating block file %s: %w", tmpPath, err)
	}
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	pw := posting.NewWriter(f)
	for _, word := range words {
		if err := pw.Write(posting.Entry{Word: word, Positions: postings[word]}); err != nil {
			return Summary{}, fmt.Errorf("writing block %d: %w", b.Index, err)
		}
	}
	if err := pw.Flush(); err != nil {
		return Summary{}, fmt.Errorf("flushing block %d: %w", b.Index, err)
	}
	if err := f.Sync(); err != nil {
		return Summary{}, fmt.Errorf("syncing block file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Summary{}, fmt.Errorf("closing block file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return Summary{}, fmt.Errorf("renaming block file: %w", err)
	}
	committed = true

	sum := Summary{Block: b.Index, Path: finalPath, Words: int(pw.Lines()), Tokens: b.Len()}
	w.logger.Debug("block file written",
		"block", sum.Block,
		"path", sum.Path,
		"words", sum.Words,
		"tokens", sum.Tokens,
	)
	return sum, nil
}
