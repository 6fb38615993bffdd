package commands

import (
	"github.com/lbliii/bengal/internal/app"
	"github.com/spf13/cobra"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the site, re-rendering only what changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			full, _ := cmd.Flags().GetBool("full")
			sequential, _ := cmd.Flags().GetBool("sequential")
			fast, _ := cmd.Flags().GetBool("fast")
			memOpt, _ := cmd.Flags().GetBool("memory-optimized")

			_, err := c.app.Build(cmd.Context(), app.BuildOptions{
				Full:            full,
				Sequential:      sequential,
				Fast:            fast,
				MemoryOptimized: memOpt,
			})
			return err
		},
	}
	cmd.Flags().Bool("full", false, "Discard the cache and rebuild everything")
	cmd.Flags().Bool("sequential", false, "Force sequential execution in every phase")
	cmd.Flags().Bool("fast", false, "Skip non-essential diagnostics")
	cmd.Flags().Bool("memory-optimized", false, "Stream output writes instead of buffering")
	return cmd
}
