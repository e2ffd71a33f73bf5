// Package cmd provides the CLI commands for the block indexer.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/blockindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/metrics"
)

// app carries what every subcommand needs once the root pre-run has loaded
// configuration.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg         *config.Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	health      *health.Checker
	stopMetrics func(context.Context) error
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Build an inverted index over a large text corpus",
		Long: `indexer tokenises a corpus into fixed-size blocks, indexes the blocks in
parallel into sorted block files, and merges the block files into a single
inverted index with one "<word> <count> <positions...>" line per word.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (json, text, auto)")

	cmd.AddCommand(newBuildCmd(a))
	cmd.AddCommand(newMergeCmd(a))
	cmd.AddCommand(newSimplifyCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	a.cfg = cfg
	a.logger = logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	a.health = health.NewChecker()

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(prometheus.DefaultRegisterer)
		a.stopMetrics = metrics.StartServer(cfg.Metrics.Port, a.logger, a.health)
	}
	return nil
}

func (a *app) teardown() error {
	if a.stopMetrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.stopMetrics(ctx)
}

func openCorpus(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	return f, nil
}
