package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/blockindex/internal/simplify"
	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/health"
)

func newSimplifyCmd(a *app) *cobra.Command {
	var (
		output  string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "simplify [index]",
		Short: "Rewrite the final index as one \"<word> <count>\" line per word",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := &a.cfg.Simplify
			if len(args) > 0 {
				sc.InputPath = args[0]
			}
			if cmd.Flags().Changed("output") {
				sc.OutputPath = output
			}
			if cmd.Flags().Changed("workers") {
				sc.Workers = workers
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.health.Register("index", health.FileReadable(sc.InputPath))
			s := simplify.New(sc.Workers, sc.TempDir, a.logger, a.metrics)
			_, err := s.Run(cmd.Context(), sc.InputPath, sc.OutputPath)
			return err
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "path of the simplified listing")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel byte ranges (0 = one per CPU)")
	return cmd
}
