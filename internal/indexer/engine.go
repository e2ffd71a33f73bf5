// Package indexer drives the full pipeline: the corpus is tokenised into
// fixed-size blocks, blocks are indexed in parallel into sorted block files,
// and the block files are merged into one inverted index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/block"
	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/dispatch"
	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/merge"
	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/blockindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/resilience"
)

// LockFileName is created inside the block directory while a run holds it.
const LockFileName = ".lock"

// BuildReport describes the indexing phase.
type BuildReport struct {
	Tokens   tokenizer.Stats
	Blocks   dispatch.Report
	Duration time.Duration
}

// RunReport describes a build followed by a merge.
type RunReport struct {
	Build BuildReport
	Merge merge.Stats
}

type Engine struct {
	cfg     config.IndexerConfig
	layout  block.Layout
	writer  *block.Writer
	merger  *merge.Merger
	metrics *metrics.Metrics
	retry   resilience.Policy
	logger  *slog.Logger
}

// NewEngine creates an Engine. A nil m records metrics into a private
// registry.
func NewEngine(cfg config.IndexerConfig, log *slog.Logger, m *metrics.Metrics) (*Engine, error) {
	if cfg.BlockSize <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "block size must be positive, got %d", cfg.BlockSize)
	}
	if err := os.MkdirAll(cfg.BlockDir, 0755); err != nil {
		return nil, fmt.Errorf("creating block directory: %w", err)
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	policy := resilience.DefaultPolicy()
	policy.Attempts = cfg.BlockAttempts
	layout := block.Layout{Dir: cfg.BlockDir, Prefix: cfg.BlockPrefix, Ext: cfg.BlockExt}
	return &Engine{
		cfg:     cfg,
		layout:  layout,
		writer:  block.NewWriter(layout, log),
		merger:  merge.New(log),
		metrics: m,
		retry:   policy,
		logger:  logger.WithComponent(log, "indexer"),
	}, nil
}

// Build tokenises src and writes one block file per block. It returns once
// every block writer has finished. Failed blocks are reported as a joined
// error matching apperrors.ErrBlockFailed. When ctx is done no further block
// is started, the running ones are waited for, and ctx.Err() is returned.
func (e *Engine) Build(ctx context.Context, src tokenizer.WordSource) (BuildReport, error) {
	unlock, err := e.lock()
	if err != nil {
		return BuildReport{}, err
	}
	defer unlock()
	return e.build(ctx, src)
}

// Merge merges every block file found in the block directory into the
// configured output path.
func (e *Engine) Merge(ctx context.Context) (merge.Stats, error) {
	unlock, err := e.lock()
	if err != nil {
		return merge.Stats{}, err
	}
	defer unlock()
	return e.merge(ctx)
}

// Run builds and merges under a single hold of the directory lock. When
// blocks fail the merge is skipped unless AllowMissingBlocks is set.
func (e *Engine) Run(ctx context.Context, src tokenizer.WordSource) (RunReport, error) {
	unlock, err := e.lock()
	if err != nil {
		return RunReport{}, err
	}
	defer unlock()

	var report RunReport
	report.Build, err = e.build(ctx, src)
	if err != nil {
		if !e.cfg.AllowMissingBlocks || !errors.Is(err, apperrors.ErrBlockFailed) {
			return report, err
		}
		e.logger.Warn("merging without failed blocks",
			"failed", len(report.Build.Blocks.Failed),
			"error", err,
		)
	}
	report.Merge, err = e.merge(ctx)
	return report, err
}

func (e *Engine) build(ctx context.Context, src tokenizer.WordSource) (BuildReport, error) {
	start := time.Now()
	if existing, err := e.layout.List(); err == nil && len(existing) > 0 {
		e.logger.Warn("block directory already holds block files; any not rewritten by this run will be merged too",
			"dir", e.layout.Dir,
			"files", len(existing),
		)
	}

	ctrl := dispatch.NewController(e.cfg.Workers, func(b tokenizer.Block) error {
		return e.indexBlock(ctx, b)
	}, e.logger)
	e.logger.Info("indexing corpus",
		"block_size", e.cfg.BlockSize,
		"workers", ctrl.Limit(),
		"block_dir", e.layout.Dir,
	)
	stats, tokErr := tokenizer.Tokenize(ctx, src, e.cfg.BlockSize, ctrl.Submit)
	blocks := ctrl.DrainAll()

	report := BuildReport{Tokens: stats, Blocks: blocks, Duration: time.Since(start)}
	e.metrics.RawWordsTotal.Add(float64(stats.RawWords))
	e.metrics.TokensTotal.Add(float64(stats.Tokens))

	if ctx.Err() != nil && errors.Is(tokErr, ctx.Err()) {
		e.logger.Warn("build interrupted",
			"blocks_written", blocks.Completed,
			"tokens", stats.Tokens,
		)
		return report, fmt.Errorf("build interrupted: %w", tokErr)
	}
	if tokErr != nil {
		return report, fmt.Errorf("tokenizing corpus: %w", tokErr)
	}
	if len(blocks.Failed) > 0 {
		errs := make([]error, len(blocks.Failed))
		for i, f := range blocks.Failed {
			errs[i] = f
		}
		return report, fmt.Errorf("%d of %d blocks failed: %w",
			len(blocks.Failed), stats.Blocks, errors.Join(errs...))
	}
	e.logger.Info("all blocks indexed",
		"blocks", stats.Blocks,
		"tokens", stats.Tokens,
		"raw_words", stats.RawWords,
		"duration", report.Duration,
	)
	return report, nil
}

func (e *Engine) indexBlock(ctx context.Context, b tokenizer.Block) error {
	e.metrics.WorkersInFlight.Inc()
	defer e.metrics.WorkersInFlight.Dec()

	start := time.Now()
	var sum block.Summary
	err := resilience.Do(ctx, e.logger, fmt.Sprintf("index block %d", b.Index), e.retry, func() error {
		var err error
		sum, err = e.writer.IndexBlock(b)
		return err
	})
	e.metrics.BlockIndexDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.BlocksTotal.WithLabelValues("error").Inc()
		return err
	}
	e.metrics.BlocksTotal.WithLabelValues("ok").Inc()
	e.logger.Info("block indexed",
		"block", sum.Block,
		"path", sum.Path,
		"words", sum.Words,
		"tokens", sum.Tokens,
	)
	return nil
}

func (e *Engine) merge(ctx context.Context) (merge.Stats, error) {
	if err := ctx.Err(); err != nil {
		return merge.Stats{}, fmt.Errorf("merge not started: %w", err)
	}
	paths, err := e.layout.List()
	if err != nil {
		return merge.Stats{}, fmt.Errorf("%w: %w", apperrors.ErrMergeFailed, err)
	}
	if len(paths) == 0 {
		e.logger.Warn("nothing to merge",
			"dir", e.layout.Dir,
			"pattern", e.layout.Prefix+"*"+e.layout.Ext,
		)
		return merge.Stats{}, fmt.Errorf("%w in %s", apperrors.ErrNoBlocks, e.layout.Dir)
	}

	start := time.Now()
	stats, err := e.merger.Merge(ctx, paths, e.cfg.OutputPath)
	e.metrics.MergeDuration.Observe(time.Since(start).Seconds())
	e.metrics.MergeLinesRepaired.WithLabelValues("truncated").Add(float64(stats.TruncatedLines))
	e.metrics.MergeLinesRepaired.WithLabelValues("skipped").Add(float64(stats.SkippedLines))
	if err != nil {
		return stats, err
	}
	e.metrics.MergeWordsTotal.Add(float64(stats.Words))
	e.metrics.MergePostingsTotal.Add(float64(stats.Postings))
	return stats, nil
}

// lock takes the cross-process lock on the block directory.
func (e *Engine) lock() (func(), error) {
	lk := flock.New(filepath.Join(e.layout.Dir, LockFileName))
	ok, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking block directory: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrLocked, e.layout.Dir)
	}
	return func() {
		if err := lk.Unlock(); err != nil {
			e.logger.Error("releasing block directory lock", "error", err)
		}
	}, nil
}
