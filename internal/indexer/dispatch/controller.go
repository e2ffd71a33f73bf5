// Package dispatch runs block indexing on a bounded set of goroutines.
//
// Admission is first-in first-out: when the pool is full, Submit waits for the
// oldest worker still tracked, even if a younger one has already finished.
// In-flight work cannot be cancelled.
package dispatch

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/blockindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/logger"
)

// WorkFunc processes one block.
type WorkFunc func(tokenizer.Block) error

// DefaultWorkers returns the number of usable CPUs, at least 1.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

type worker struct {
	block int
	done  chan struct{}
	err   error
}

// Report summarises the blocks reaped by a Controller.
type Report struct {
	Completed int
	Failed    []*apperrors.BlockError
	// Reaped lists block numbers in the order their workers were collected.
	Reaped []int
}

// Controller dispatches blocks to at most Limit concurrent workers. Submit and
// DrainAll must be called from a single goroutine.
type Controller struct {
	limit    int
	work     WorkFunc
	inflight []*worker
	report   Report
	logger   *slog.Logger
}

// NewController creates a Controller. A limit below 1 selects DefaultWorkers.
func NewController(limit int, work WorkFunc, log *slog.Logger) *Controller {
	if limit < 1 {
		limit = DefaultWorkers()
	}
	return &Controller{
		limit:  limit,
		work:   work,
		logger: logger.WithComponent(log, "dispatch"),
	}
}

// Limit returns the concurrency ceiling.
func (c *Controller) Limit() int {
	return c.limit
}

// InFlight returns the number of workers currently tracked.
func (c *Controller) InFlight() int {
	return len(c.inflight)
}

// Submit starts a worker for b, first waiting for the oldest tracked worker
// when the pool is at capacity.
func (c *Controller) Submit(b tokenizer.Block) {
	if len(c.inflight) >= c.limit {
		oldest := c.inflight[0]
		c.inflight[0] = nil
		c.inflight = c.inflight[1:]
		c.logger.Debug("pool full, waiting for oldest worker",
			"waiting_on", oldest.block,
			"next", b.Index,
		)
		c.reap(oldest)
	}
	w := &worker{block: b.Index, done: make(chan struct{})}
	c.inflight = append(c.inflight, w)
	go c.run(w, b)
}

// DrainAll waits for every outstanding worker and returns the report of all
// blocks submitted so far. No block file is guaranteed complete before it
// returns.
func (c *Controller) DrainAll() Report {
	for i, w := range c.inflight {
		c.reap(w)
		c.inflight[i] = nil
	}
	c.inflight = c.inflight[:0]
	return c.report
}

func (c *Controller) run(w *worker, b tokenizer.Block) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.err = fmt.Errorf("panic: %v", r)
		}
	}()
	w.err = c.work(b)
}

func (c *Controller) reap(w *worker) {
	<-w.done
	c.report.Reaped = append(c.report.Reaped, w.block)
	if w.err != nil {
		c.report.Failed = append(c.report.Failed, apperrors.NewBlockError(w.block, w.err))
		c.logger.Error("block failed", "block", w.block, "error", w.err)
		return
	}
	c.report.Completed++
}
