package main

import (
	"fmt"

	"github.com/aretw0/inquiry/internal/cli"
	"github.com/aretw0/inquiry/internal/presentation/graph"
	"github.com/aretw0/inquiry/internal/routing"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the pipeline graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the pipeline topology.
With --session, the steps the session visited and the step it is at are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var overlay *graph.GraphOverlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := cli.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			state, err := store.Get(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("failed to load session '%s': %w", sessionID, err)
			}
			overlay = graph.OverlayFor(state)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(routing.Edges(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight the progress of this session")
}
