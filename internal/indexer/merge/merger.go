// Package merge combines sorted block files into the final inverted index
// with a streaming k-way merge.
//
// Every block file is sorted by word, and block files are numbered in
// ascending global-offset order. The heap orders entries by word and then by
// file number, so for any word the per-file postings are visited in block
// order and can be concatenated without re-sorting.
package merge

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/blockindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/logger"
)

// checkEvery is how many heap entries are merged between context checks.
const checkEvery = 4096

// Stats describes one merge run.
type Stats struct {
	Files          int
	Words          int64
	Postings       int64
	TruncatedLines int
	SkippedLines   int
	// OutOfOrder counts words whose postings were not ascending across files,
	// which only happens when the inputs do not come from a single build.
	OutOfOrder int
}

type source struct {
	id     int
	path   string
	file   *os.File
	reader *posting.Reader
}

// item is one parsed line tagged with the file it came from.
type item struct {
	entry posting.Entry
	file  int
}

// Merger merges block files.
type Merger struct {
	logger *slog.Logger
}

// New creates a Merger.
func New(log *slog.Logger) *Merger {
	return &Merger{logger: logger.WithComponent(log, "merger")}
}

// Merge reads every file in paths, where the position in the slice is the
// file number used to break ties, and writes the merged index to outputPath.
// The output is written under a temporary name and renamed once complete; on
// failure no output file is left behind. The merge stops with ctx.Err() once
// ctx is done.
func (m *Merger) Merge(ctx context.Context, paths []string, outputPath string) (Stats, error) {
	if len(paths) == 0 {
		return Stats{}, apperrors.ErrNoBlocks
	}
	stats := Stats{Files: len(paths)}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	sources := make([]*source, 0, len(paths))
	defer func() {
		for _, src := range sources {
			src.file.Close()
		}
	}()
	for i, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return stats, fmt.Errorf("%w: opening block file: %w", apperrors.ErrMergeFailed, err)
		}
		sources = append(sources, &source{id: i, path: path, file: f, reader: posting.NewReader(f)})
	}

	tmpPath := outputPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return stats, fmt.Errorf("%w: creating output file: %w", apperrors.ErrMergeFailed, err)
	}
	committed := false
	defer func() {
		if !committed {
			out.Close()
			os.Remove(tmpPath)
		}
	}()

	h := &entryHeap{}
	for _, src := range sources {
		it, ok, err := m.next(src, &stats)
		if err != nil {
			return stats, err
		}
		if ok {
			heap.Push(h, it)
		}
	}

	w := posting.NewWriter(out)
	var current posting.Entry
	accumulating := false
	flush := func() error {
		if err := w.Write(current); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrMergeFailed, err)
		}
		stats.Words = w.Lines()
		stats.Postings += int64(len(current.Positions))
		return nil
	}

	for popped := 0; h.Len() > 0; popped++ {
		if popped%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("merge interrupted: %w", err)
			}
		}
		top := heap.Pop(h).(item)
		switch {
		case accumulating && top.entry.Word == current.Word:
			if n := len(current.Positions); n > 0 && len(top.entry.Positions) > 0 &&
				top.entry.Positions[0] <= current.Positions[n-1] {
				stats.OutOfOrder++
				m.logger.Warn("postings not ascending across block files",
					"word", current.Word,
					"file", sources[top.file].path,
				)
			}
			current.Positions = append(current.Positions, top.entry.Positions...)
		default:
			if accumulating {
				if err := flush(); err != nil {
					return stats, err
				}
			}
			current = top.entry
			accumulating = true
		}

		it, ok, err := m.next(sources[top.file], &stats)
		if err != nil {
			return stats, err
		}
		if ok {
			heap.Push(h, it)
		}
	}
	if accumulating {
		if err := flush(); err != nil {
			return stats, err
		}
	}

	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("%w: flushing output: %w", apperrors.ErrMergeFailed, err)
	}
	if err := out.Sync(); err != nil {
		return stats, fmt.Errorf("%w: syncing output: %w", apperrors.ErrMergeFailed, err)
	}
	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("%w: closing output: %w", apperrors.ErrMergeFailed, err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return stats, fmt.Errorf("%w: renaming output: %w", apperrors.ErrMergeFailed, err)
	}
	committed = true

	m.logger.Info("merge complete",
		"files", stats.Files,
		"words", stats.Words,
		"postings", stats.Postings,
		"output", outputPath,
	)
	return stats, nil
}

// next reads the following usable entry of src. Malformed lines are skipped
// and short lines keep the positions they carry.
func (m *Merger) next(src *source, stats *Stats) (item, bool, error) {
	for {
		e, declared, err := src.reader.Next()
		switch {
		case err == io.EOF:
			return item{}, false, nil
		case errors.Is(err, posting.ErrMalformedLine):
			stats.SkippedLines++
			m.logger.Warn("skipping malformed line", "file", src.path, "error", err)
			continue
		case err != nil:
			return item{}, false, fmt.Errorf("%w: reading %s: %w", apperrors.ErrMergeFailed, src.path, err)
		}
		if len(e.Positions) < declared {
			stats.TruncatedLines++
			m.logger.Warn("line shorter than declared count, truncating",
				"file", src.path,
				"line", src.reader.Line(),
				"word", e.Word,
				"declared", declared,
				"read", len(e.Positions),
			)
		}
		return item{entry: e, file: src.id}, true, nil
	}
}

// entryHeap is a min-heap ordered by word, then by file number.
type entryHeap []item

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].entry.Word != h[j].entry.Word {
		return h[i].entry.Word < h[j].entry.Word
	}
	return h[i].file < h[j].file
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x interface{}) {
	*h = append(*h, x.(item))
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = item{}
	*h = old[:n-1]
	return it
}
