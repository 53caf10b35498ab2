package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexus-desktop/nexus-agent/internal/actionlog"
	"github.com/nexus-desktop/nexus-agent/internal/analysis"
	"github.com/nexus-desktop/nexus-agent/internal/capture"
	"github.com/nexus-desktop/nexus-agent/internal/executor"
	"github.com/nexus-desktop/nexus-agent/internal/observability"
	"github.com/nexus-desktop/nexus-agent/internal/session"
)

// newRunCmd creates the `run` command: one orchestration run from the
// terminal, without the server.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [intent...]",
		Short: "Runs a single automation request and prints the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			intent := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sim := capture.NewSimulated(cfg.Capture.Width, cfg.Capture.Height, logger)
			if err := sim.Start(); err != nil {
				return fmt.Errorf("failed to start capture: %w", err)
			}
			defer sim.Stop()

			analyzer, err := analysis.New(ctx, cfg.AI, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize analysis client: %w", err)
			}
			defer analyzer.Close()

			exec := executor.New(cfg.Executor, sim, logger)
			actions := actionlog.New(logger)
			transcript := session.NewTranscript()
			highlight := session.NewHighlight(cfg.Session.HighlightDuration)

			orch, err := session.New(actions, transcript, highlight, sim, analyzer, exec, logger)
			if err != nil {
				return fmt.Errorf("failed to create orchestrator: %w", err)
			}
			orch.SetActive(true)

			if err := orch.Run(ctx, intent); err != nil {
				return err
			}

			fmt.Println("\nConversation:")
			for _, msg := range transcript.List() {
				fmt.Printf("  [%s] %s\n", msg.Role, msg.Content)
			}

			fmt.Println("\nActions:")
			for _, action := range actions.List() {
				line := fmt.Sprintf("  [%s] %s", action.Status, action.Description)
				if action.Coordinates != nil {
					line += " @ " + action.Coordinates.String()
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	return runCmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
