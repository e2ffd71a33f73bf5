// Package metrics defines the Prometheus collectors of the indexing pipeline
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	RawWordsTotal      prometheus.Counter
	TokensTotal        prometheus.Counter
	BlocksTotal        *prometheus.CounterVec
	BlockIndexDuration prometheus.Histogram
	WorkersInFlight    prometheus.Gauge
	MergeWordsTotal    prometheus.Counter
	MergePostingsTotal prometheus.Counter
	MergeLinesRepaired *prometheus.CounterVec
	MergeDuration      prometheus.Histogram
	SimplifyLinesTotal prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RawWordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blockindex_raw_words_total",
				Help: "Raw whitespace-delimited words read from the corpus.",
			},
		),
		TokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blockindex_tokens_total",
				Help: "Canonical tokens produced by normalisation.",
			},
		),
		BlocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_blocks_total",
				Help: "Blocks indexed by status (ok, error).",
			},
			[]string{"status"},
		),
		BlockIndexDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blockindex_block_index_duration_seconds",
				Help:    "Time to build and write one block file.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		WorkersInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockindex_workers_in_flight",
				Help: "Block workers currently running.",
			},
		),
		MergeWordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blockindex_merge_words_total",
				Help: "Distinct words written to the final index.",
			},
		),
		MergePostingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blockindex_merge_postings_total",
				Help: "Positions written to the final index.",
			},
		),
		MergeLinesRepaired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockindex_merge_lines_repaired_total",
				Help: "Block lines the merge degraded instead of failing (truncated, skipped).",
			},
			[]string{"kind"},
		),
		MergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blockindex_merge_duration_seconds",
				Help:    "Wall time of a complete merge.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		SimplifyLinesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blockindex_simplify_lines_total",
				Help: "Lines rewritten by the simplifier.",
			},
		),
	}

	reg.MustRegister(
		m.RawWordsTotal,
		m.TokensTotal,
		m.BlocksTotal,
		m.BlockIndexDuration,
		m.WorkersInFlight,
		m.MergeWordsTotal,
		m.MergePostingsTotal,
		m.MergeLinesRepaired,
		m.MergeDuration,
		m.SimplifyLinesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
