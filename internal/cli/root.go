// Package cli provides the censusml command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/YuminosukeSato/censusml/internal/config"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// configKey is used to store the loaded config in the command context.
type configKey struct{}

func configFrom(cmd *cobra.Command) (*config.Loaded, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Loaded)
	if !ok {
		return nil, errors.New("configuration was not loaded")
	}
	return cfg, nil
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "censusml",
		Short: "Census microdata exploration and SHAP explanations",
		Long: `censusml replays two walkthroughs over a census CSV extract.

  explore  loads, transforms, summarizes and splits the frame
  explain  fits a decision tree and a logistic regression, then explains
           them with TreeSHAP and Kernel SHAP and writes the plots`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			log.Configure(cmd.ErrOrStderr(), level, cfg.LogFormat == "console")
			if cfg.File != "" {
				log.GetLoggerWithName("cli").Debug("config loaded", log.ConfigFileKey, cfg.File)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+")")
	pf.String("data", "", "census CSV file")
	pf.StringP("output", "o", "", "directory for rendered plots")
	pf.Int64("seed", 0, "random seed for split, tree and Kernel SHAP sampling")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (json|console)")
	pf.Int("preview-rows", 0, "rows shown in frame previews")
	pf.StringSlice("columns", nil, "columns to keep after loading")
	pf.StringSlice("categorical", nil, "columns to one-hot encode")
	pf.String("target", "", "target column")
	pf.Float64("target-threshold", 0, "positive label when target > threshold")
	pf.Float64("validation-fraction", 0, "share of rows held out for validation")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "console"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newExploreCommand())
	rootCmd.AddCommand(newExplainCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
