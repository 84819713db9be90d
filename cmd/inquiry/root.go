package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/inquiry/internal/cli"
	"github.com/aretw0/inquiry/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "inquiry",
	Short: "Inquiry runs multi-step research pipelines with human checkpoints",
	Long: `Inquiry drives a research session through hypothesis, planning, worker, quality review
and refinement steps, pausing for a human decision whenever one is needed. Sessions are
checkpointed after every step and can be resumed later.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./inquiry.yaml or $HOME/.inquiry/inquiry.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}

// loadConfig reads the configuration and builds the logger for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cli.NewLogger(cfg, debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
