package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/health"
)

func newMergeCmd(a *app) *cobra.Command {
	var (
		blockDir string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge existing block files into the final index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ic := &a.cfg.Indexer
			if cmd.Flags().Changed("block-dir") {
				ic.BlockDir = blockDir
			}
			if cmd.Flags().Changed("output") {
				ic.OutputPath = output
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			engine, err := indexer.NewEngine(*ic, a.logger, a.metrics)
			if err != nil {
				return err
			}
			a.health.Register("block_dir", health.DirWritable(ic.BlockDir))
			_, err = engine.Merge(cmd.Context())
			return err
		},
	}
	cmd.Flags().StringVar(&blockDir, "block-dir", "", "directory holding block files")
	cmd.Flags().StringVar(&output, "output", "", "path of the merged index")
	return cmd
}
