package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/inquiry/internal/cli"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long:  `List, inspect, and remove the sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.CheckpointStore) error {
			sessions, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			fmt.Fprintln(out, "Sessions:")
			for _, s := range sessions {
				next, err := store.NextStep(cmd.Context(), s)
				if err != nil {
					fmt.Fprintf(out, "- %s (unreadable: %v)\n", s, err)
					continue
				}
				if next == "" {
					next = "done"
				}
				fmt.Fprintf(out, "- %s [%s]\n", s, next)
			}
			return nil
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.CheckpointStore) error {
			state, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load session '%s': %w", args[0], err)
			}

			// Pretty print JSON
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal state: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.CheckpointStore) error {
			var errs []error
			for _, sessionID := range args {
				if err := store.Delete(cmd.Context(), sessionID); err != nil {
					errs = append(errs, fmt.Errorf("failed to remove '%s': %w", sessionID, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
			}
			return errors.Join(errs...)
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

func withStore(cmd *cobra.Command, fn func(ports.CheckpointStore) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := cli.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}
