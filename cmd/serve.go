package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/actionlog"
	"github.com/nexus-desktop/nexus-agent/internal/analysis"
	"github.com/nexus-desktop/nexus-agent/internal/capture"
	"github.com/nexus-desktop/nexus-agent/internal/config"
	"github.com/nexus-desktop/nexus-agent/internal/executor"
	"github.com/nexus-desktop/nexus-agent/internal/observability"
	"github.com/nexus-desktop/nexus-agent/internal/realtime"
	"github.com/nexus-desktop/nexus-agent/internal/server"
	"github.com/nexus-desktop/nexus-agent/internal/session"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the automation agent's HTTP and websocket server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			// Re-unmarshal so flag overrides land with the right precedence.
			loaded, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config: %w", err)
			}
			cfg = loaded

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			components, err := initializeAgentComponents(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize agent components: %w", err)
			}
			defer components.Shutdown(logger)

			hub := realtime.NewHub(cfg.Realtime, cfg.Server.AllowedOrigin, components.Executor, components.Capture, logger)

			srv := server.New(
				cfg.Server,
				cfg.AI.APIKey != "",
				components.Analyzer,
				components.Executor,
				components.Orchestrator,
				logger,
				func(mux *http.ServeMux) {
					mux.HandleFunc("GET /ws", hub.HandleWS)
				},
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.ListenAndServe)
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("Shutting down")
				hub.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil && err != context.Canceled {
				return err
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	serveCmd.Flags().String("addr", "", "Listen address. (Overrides config/env)")
	return serveCmd
}

// agentComponents holds the initialized services behind the server.
type agentComponents struct {
	Capture      schemas.CaptureProvider
	Analyzer     schemas.AnalysisClient
	Executor     schemas.ActionExecutor
	Orchestrator *session.Orchestrator
	stopCapture  func()
}

// Shutdown closes the components that hold external resources.
func (ac *agentComponents) Shutdown(logger *zap.Logger) {
	if ac.stopCapture != nil {
		ac.stopCapture()
	}
	if ac.Analyzer != nil {
		if err := ac.Analyzer.Close(); err != nil {
			logger.Warn("Error closing analysis client", zap.Error(err))
		}
	}
}

// initializeAgentComponents handles dependency injection.
func initializeAgentComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*agentComponents, error) {
	components := &agentComponents{}

	// 1. Capture source
	switch cfg.Capture.Mode {
	case "browser":
		browser := capture.NewBrowser(cfg.Capture.TargetURL, cfg.Capture.Headless, logger)
		if err := browser.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start browser capture: %w", err)
		}
		components.Capture = browser
		components.stopCapture = browser.Stop
	default:
		sim := capture.NewSimulated(cfg.Capture.Width, cfg.Capture.Height, logger)
		if err := sim.Start(); err != nil {
			return nil, fmt.Errorf("failed to start simulated capture: %w", err)
		}
		components.Capture = sim
		components.stopCapture = sim.Stop
	}

	// 2. Analysis client
	analyzer, err := analysis.New(ctx, cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analysis client: %w", err)
	}
	components.Analyzer = analyzer

	// 3. Executor
	components.Executor = executor.New(cfg.Executor, components.Capture, logger)

	// 4. Session orchestrator
	actions := actionlog.New(logger)
	transcript := session.NewTranscript()
	highlight := session.NewHighlight(cfg.Session.HighlightDuration)

	orch, err := session.New(actions, transcript, highlight, components.Capture, analyzer, components.Executor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	orch.SetActive(true)
	components.Orchestrator = orch

	return components, nil
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
