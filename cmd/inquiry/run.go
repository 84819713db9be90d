package main

import (
	"os"
	"strings"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/internal/cli"
	"github.com/aretw0/inquiry/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [question...]",
	Short: "Run a research session interactively",
	Long: `Starts a research session on the given question and prompts for every human decision.
With --session, an existing session is resumed: a pending decision is asked again, and a
finished session continues with the new question.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if script, _ := cmd.Flags().GetString("script"); script != "" {
			cfg.Executors.Script = script
			cfg.Executors.Process = ""
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = inquiry.NewSessionID()
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		plain, _ := cmd.Flags().GetBool("plain")
		interactive := cli.IsInteractive(os.Stdout)

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		if interactive && !quiet {
			tui.PrintBanner(os.Stdout, inquiry.Version)
		}

		_, err = cli.RunSession(ctx, rt.Pipeline, cli.RunOptions{
			SessionID: sessionID,
			Input:     strings.Join(args, " "),
			In:        os.Stdin,
			Out:       os.Stdout,
			Renderer:  tui.NewRenderer(plain || !interactive),
			Quiet:     quiet,
		})
		if err != nil && ctx.Signal() != nil {
			logger.Info("session interrupted", "session", sessionID, "signal", ctx.Signal())
		}
		return cli.HandleExecutionError(err)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session id to start or resume (default: a new id)")
	runCmd.Flags().String("script", "", "YAML script of canned step results (overrides executors config)")
	runCmd.Flags().Bool("plain", false, "Print markdown without terminal styling")
	runCmd.Flags().BoolP("quiet", "q", false, "Only print decision prompts")
}
