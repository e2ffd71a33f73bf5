package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/health"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		blockSize    int
		workers      int
		blockDir     string
		output       string
		noMerge      bool
		allowMissing bool
	)
	cmd := &cobra.Command{
		Use:   "build [corpus]",
		Short: "Index a corpus into block files and merge them",
		Long: `Reads the corpus word by word, writes one sorted block file per block of
tokens using a bounded pool of workers, then merges every block file into the
final index. With --no-merge only the block files are written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ic := &a.cfg.Indexer
			if len(args) > 0 {
				ic.CorpusPath = args[0]
			}
			flags := cmd.Flags()
			if flags.Changed("block-size") {
				ic.BlockSize = blockSize
			}
			if flags.Changed("workers") {
				ic.Workers = workers
			}
			if flags.Changed("block-dir") {
				ic.BlockDir = blockDir
			}
			if flags.Changed("output") {
				ic.OutputPath = output
			}
			if flags.Changed("allow-missing-blocks") {
				ic.AllowMissingBlocks = allowMissing
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			engine, err := indexer.NewEngine(*ic, a.logger, a.metrics)
			if err != nil {
				return err
			}
			a.health.Register("corpus", health.FileReadable(ic.CorpusPath))
			a.health.Register("block_dir", health.DirWritable(ic.BlockDir))
			f, err := openCorpus(ic.CorpusPath)
			if err != nil {
				return err
			}
			defer f.Close()
			src := tokenizer.NewScannerSource(f, ic.MaxWordBytes)

			if noMerge {
				_, err = engine.Build(cmd.Context(), src)
				return err
			}
			report, err := engine.Run(cmd.Context(), src)
			if err != nil {
				return err
			}
			a.logger.Info("index complete",
				"output", ic.OutputPath,
				"blocks", report.Build.Tokens.Blocks,
				"tokens", report.Build.Tokens.Tokens,
				"words", report.Merge.Words,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&blockSize, "block-size", 0, "tokens per block")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent block writers (0 = one per CPU)")
	cmd.Flags().StringVar(&blockDir, "block-dir", "", "directory for block files")
	cmd.Flags().StringVar(&output, "output", "", "path of the merged index")
	cmd.Flags().BoolVar(&noMerge, "no-merge", false, "write block files only")
	cmd.Flags().BoolVar(&allowMissing, "allow-missing-blocks", false, "merge even if some blocks failed")
	return cmd
}
