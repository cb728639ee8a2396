package cli

import (
	"fmt"

	"github.com/YuminosukeSato/censusml/internal/pipeline"
	"github.com/spf13/cobra"
)

func newExploreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Load, transform, summarize and split the census frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			_, err = pipeline.New(cfg.Config, cmd.OutOrStdout()).Explore(cmd.Context())
			return err
		},
	}
}

func newExplainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Fit the models and explain them with TreeSHAP and Kernel SHAP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			_, err = pipeline.New(cfg.Config, cmd.OutOrStdout()).Explain(cmd.Context())
			return err
		},
	}
	f := cmd.Flags()
	f.Int("max-depth", 0, "maximum depth of the decision tree")
	f.String("criterion", "", "split criterion (gini|entropy)")
	f.Int("explain-rows", 0, "validation rows to explain")
	f.Int("background-size", 0, "background rows or k-means clusters for Kernel SHAP")
	f.String("background-method", "", "background summary (kmeans|sample)")
	f.Int("kernel-samples", 0, "coalitions per row for Kernel SHAP (0: 2*M+2048)")
	f.Int("workers", 0, "parallel workers for SHAP (0: number of CPUs)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "censusml %s (%s)\n", Version, GitCommit)
		},
	}
}
