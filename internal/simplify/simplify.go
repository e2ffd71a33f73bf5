// Package simplify rewrites a final index into a reduced "<word> <count>"
// listing. The input is split into byte ranges processed in parallel; each
// line is handled by the range that contains its first byte, and the
// per-range results are concatenated in range order.
package simplify

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/dispatch"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/metrics"
)

// Stats describes one simplification.
type Stats struct {
	Ranges  int
	Lines   int64
	Skipped int64
}

type byteRange struct {
	start, end int64
}

// Simplifier runs the byte-range rewrite.
type Simplifier struct {
	workers int
	tempDir string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Simplifier. workers below 1 selects one range per CPU; an
// empty tempDir places range files next to the output. A nil m records
// metrics into a private registry.
func New(workers int, tempDir string, log *slog.Logger, m *metrics.Metrics) *Simplifier {
	if workers < 1 {
		workers = dispatch.DefaultWorkers()
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Simplifier{
		workers: workers,
		tempDir: tempDir,
		metrics: m,
		logger:  logger.WithComponent(log, "simplify"),
	}
}

// Run reads the index at inPath and writes the simplified listing to outPath.
func (s *Simplifier) Run(ctx context.Context, inPath, outPath string) (Stats, error) {
	info, err := os.Stat(inPath)
	if err != nil {
		return Stats{}, fmt.Errorf("opening index: %w", err)
	}
	ranges := split(info.Size(), s.workers)
	tempDir := s.tempDir
	if tempDir == "" {
		tempDir = filepath.Dir(outPath)
	}

	parts := make([]string, len(ranges))
	counts := make([]int64, len(ranges))
	skipped := make([]int64, len(ranges))
	defer func() {
		for _, p := range parts {
			if p != "" {
				os.Remove(p)
			}
		}
	}()

	files := make([]*os.File, len(ranges))
	for i := range ranges {
		part, err := os.CreateTemp(tempDir, "simplify-*.part")
		if err != nil {
			for _, f := range files[:i] {
				f.Close()
			}
			return Stats{}, fmt.Errorf("creating range file: %w", err)
		}
		files[i] = part
		parts[i] = part.Name()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		part := files[i]
		g.Go(func() error {
			defer part.Close()
			n, skip, err := s.processRange(gctx, inPath, info.Size(), r, part)
			if err != nil {
				return fmt.Errorf("range %d [%d,%d): %w", i, r.start, r.end, err)
			}
			counts[i], skipped[i] = n, skip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{Ranges: len(ranges)}
	for i := range ranges {
		stats.Lines += counts[i]
		stats.Skipped += skipped[i]
	}
	if err := concat(parts, outPath); err != nil {
		return stats, err
	}
	s.metrics.SimplifyLinesTotal.Add(float64(stats.Lines))
	s.logger.Info("index simplified",
		"ranges", stats.Ranges,
		"lines", stats.Lines,
		"skipped", stats.Skipped,
		"output", outPath,
	)
	return stats, nil
}

// split cuts size bytes into at most n contiguous ranges.
func split(size int64, n int) []byteRange {
	if size == 0 {
		return nil
	}
	if int64(n) > size {
		n = int(size)
	}
	chunk := size / int64(n)
	ranges := make([]byteRange, n)
	for i := range ranges {
		ranges[i] = byteRange{start: int64(i) * chunk, end: int64(i+1) * chunk}
	}
	ranges[n-1].end = size
	return ranges
}

// processRange rewrites every line whose first byte lies in r.
func (s *Simplifier) processRange(ctx context.Context, path string, size int64, r byteRange, out io.Writer) (int64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	from := r.start
	if from > 0 {
		// start one byte early to learn whether r.start begins a line
		from--
	}
	br := bufio.NewReaderSize(io.NewSectionReader(f, from, size-from), 256*1024)
	pos := from
	if r.start > 0 {
		skipped, err := br.ReadSlice('\n')
		for err == bufio.ErrBufferFull {
			pos += int64(len(skipped))
			skipped, err = br.ReadSlice('\n')
		}
		pos += int64(len(skipped))
		if err == io.EOF {
			return 0, 0, nil
		}
		if err != nil {
			return 0, 0, err
		}
	}

	w := bufio.NewWriter(out)
	var lines, bad int64
	for pos < r.end {
		if lines%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return lines, bad, err
			}
		}
		line, err := br.ReadBytes('\n')
		pos += int64(len(line))
		if len(line) > 0 {
			if word, count, ok := wordAndCount(line); ok {
				w.Write(word)
				w.WriteByte(' ')
				w.Write(count)
				w.WriteByte('\n')
				lines++
			} else {
				bad++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, bad, err
		}
	}
	return lines, bad, w.Flush()
}

// wordAndCount returns the first two space-separated fields of an index line.
func wordAndCount(line []byte) ([]byte, []byte, bool) {
	line = bytes.TrimRight(line, "\r\n")
	sp := bytes.IndexByte(line, ' ')
	if sp < 0 {
		return nil, nil, false
	}
	word := line[:sp]
	rest := bytes.TrimLeft(line[sp+1:], " ")
	if end := bytes.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	if len(rest) == 0 {
		return nil, nil, false
	}
	return word, rest, true
}

// concat writes the range files, in order, to outPath.
func concat(parts []string, outPath string) error {
	tmpPath := outPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			out.Close()
			os.Remove(tmpPath)
		}
	}()
	for _, p := range parts {
		in, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("opening range file: %w", err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return fmt.Errorf("copying range file: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("renaming output: %w", err)
	}
	committed = true
	return nil
}
