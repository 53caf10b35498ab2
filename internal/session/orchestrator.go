// File: internal/session/orchestrator.go
// Description: The automation run protocol. One run drives capture ->
// analyze -> execute -> log as a strictly sequential pipeline; capture and
// analysis failures abort the run, execution-step failures stay local to
// their action.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/capture"
)

// ErrRunInProgress is returned when a run is requested while another has
// not reached its terminal state. The second request leaves the action log
// untouched; runs are rejected, never queued.
var ErrRunInProgress = errors.New("session: a run is already in progress")

const fallbackReply = "I have analyzed your request."

// Orchestrator owns one session: its action log, transcript, highlight
// beacon and agent-active flag, plus the injected collaborators.
type Orchestrator struct {
	actions    schemas.ActionLog
	transcript *Transcript
	highlight  *Highlight

	capture  schemas.CaptureProvider
	analyzer schemas.AnalysisClient
	executor schemas.ActionExecutor

	active     atomic.Bool
	processing atomic.Bool
	log        *zap.Logger
}

// New wires an orchestrator with its collaborators.
func New(
	actions schemas.ActionLog,
	transcript *Transcript,
	highlight *Highlight,
	cap schemas.CaptureProvider,
	analyzer schemas.AnalysisClient,
	exec schemas.ActionExecutor,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if actions == nil || transcript == nil || highlight == nil ||
		cap == nil || analyzer == nil || exec == nil {
		return nil, errors.New("session: cannot build orchestrator with nil dependencies")
	}
	return &Orchestrator{
		actions:    actions,
		transcript: transcript,
		highlight:  highlight,
		capture:    cap,
		analyzer:   analyzer,
		executor:   exec,
		log:        logger.Named("orchestrator"),
	}, nil
}

// Actions exposes the session's action log for read-only observers.
func (o *Orchestrator) Actions() schemas.ActionLog { return o.actions }

// Transcript exposes the session's chat history.
func (o *Orchestrator) Transcript() *Transcript { return o.transcript }

// Highlight exposes the session's highlight beacon.
func (o *Orchestrator) Highlight() *Highlight { return o.highlight }

// SetActive toggles the agent flag and posts the matching status message.
func (o *Orchestrator) SetActive(active bool) {
	if o.active.Swap(active) == active {
		return
	}
	if active {
		o.transcript.Add(schemas.RoleAssistant, "Agent started. I am watching your screen and ready to execute your commands.")
	} else {
		o.transcript.Add(schemas.RoleAssistant, "Agent stopped. Session ended.")
	}
	o.log.Info("agent toggled", zap.Bool("active", active))
}

// IsActive reports the agent flag.
func (o *Orchestrator) IsActive() bool { return o.active.Load() }

// IsProcessing reports whether a run is currently in flight.
func (o *Orchestrator) IsProcessing() bool { return o.processing.Load() }

// Reset clears the session: action log, transcript (re-greeted), highlight.
// Issued ids cease to resolve; the agent flag is dropped.
func (o *Orchestrator) Reset() {
	o.actions.Clear()
	o.transcript.Reset()
	o.highlight.Clear()
	o.active.Store(false)
	o.log.Info("session reset")
}

// Run executes one automation run for the given user intent. The intent is
// always recorded in the transcript; the pipeline only starts when the
// agent is active, no run is in flight and a capture source is available.
func (o *Orchestrator) Run(ctx context.Context, intent string) error {
	o.transcript.Add(schemas.RoleUser, intent)

	// Second line of defense behind the UI: overlapping runs would
	// interleave their actions in the shared log, so they are refused.
	if !o.processing.CompareAndSwap(false, true) {
		o.log.Warn("run refused, another run in progress")
		return ErrRunInProgress
	}
	defer o.processing.Store(false)

	if !o.active.Load() {
		o.transcript.Add(schemas.RoleAssistant, "The agent is not active. Start it to begin automation.")
		return nil
	}

	if !o.capture.Active() {
		o.actions.Append(schemas.Action{
			Description: "No active capture source",
			Status:      schemas.StatusError,
		})
		o.transcript.Add(schemas.RoleAssistant, "Screen capture is not enabled. Please start screen sharing so I can see your desktop.")
		return nil
	}

	o.log.Info("run started", zap.String("intent", intent))

	frame, err := o.captureStep(ctx)
	if err != nil {
		return err
	}

	result, err := o.analyzeStep(ctx, frame, intent)
	if err != nil {
		return err
	}

	o.executePhase(ctx, frame, result)

	summary := "Task completed successfully"
	if result.Confidence > 0 {
		summary = fmt.Sprintf("Task completed successfully (confidence: %d%%)", result.Confidence)
	}
	o.actions.Append(schemas.Action{Description: summary, Status: schemas.StatusCompleted})
	o.log.Info("run finished", zap.Int("confidence", result.Confidence))
	return nil
}

// captureStep requests one frame. Any failure here aborts the run.
func (o *Orchestrator) captureStep(ctx context.Context) (*schemas.Frame, error) {
	id := o.actions.Append(schemas.Action{
		Description: "Capturing screen...",
		Status:      schemas.StatusInProgress,
	})

	frame, err := o.capture.Frame(ctx)
	if err != nil {
		o.actions.Update(id, patch(schemas.StatusError, "Screen capture failed"))
		if errors.Is(err, capture.ErrPermissionDenied) {
			o.transcript.Add(schemas.RoleAssistant, "Screen capture permission was denied. Please allow screen sharing and try again.")
		} else {
			o.transcript.Add(schemas.RoleAssistant, fmt.Sprintf("Sorry, I could not capture the screen: %v", err))
		}
		o.log.Error("capture failed", zap.Error(err))
		return nil, err
	}

	o.actions.Update(id, patch(schemas.StatusCompleted,
		fmt.Sprintf("Screen captured (%dx%d)", frame.Width, frame.Height)))
	return frame, nil
}

// analyzeStep asks the analysis client for a suggestion and posts the
// assistant reply. Any failure here aborts the run.
func (o *Orchestrator) analyzeStep(ctx context.Context, frame *schemas.Frame, intent string) (*schemas.AnalysisResult, error) {
	id := o.actions.Append(schemas.Action{
		Description: "Analyzing screen...",
		Status:      schemas.StatusInProgress,
	})

	result, err := o.analyzer.Analyze(ctx, frame.Data, intent)
	if err != nil {
		o.actions.Update(id, patch(schemas.StatusError, "Visual analysis failed"))
		o.actions.Append(schemas.Action{
			Description: fmt.Sprintf("Analysis error: %v", err),
			Status:      schemas.StatusError,
		})
		o.transcript.Add(schemas.RoleAssistant, fmt.Sprintf("Sorry, the analysis failed: %v", err))
		o.log.Error("analysis failed", zap.Error(err))
		return nil, err
	}

	o.actions.Update(id, patch(schemas.StatusCompleted, "Visual analysis completed"))

	reply := result.Response
	if reply == "" {
		reply = result.Reasoning
	}
	if reply == "" {
		reply = fallbackReply
	}
	o.transcript.Add(schemas.RoleAssistant, reply)
	return result, nil
}

// executePhase issues the suggested primitive actions. Failures here are
// localized to their action and never abort the run; a suggestion carrying
// neither coordinates nor command is simply a run with no execute phase.
func (o *Orchestrator) executePhase(ctx context.Context, frame *schemas.Frame, result *schemas.AnalysisResult) {
	if result.Coordinates != nil {
		target := clampToFrame(*result.Coordinates, frame)
		if target != *result.Coordinates {
			o.log.Warn("clamped out-of-frame coordinates",
				zap.String("suggested", result.Coordinates.String()),
				zap.String("clamped", target.String()))
		}
		o.highlight.Set(target)

		o.executeStep(ctx,
			schemas.Action{
				Description: fmt.Sprintf("Moving cursor to %s", target),
				Coordinates: &target,
				Status:      schemas.StatusInProgress,
			},
			schemas.ExecutionRequest{
				Kind:    schemas.KindMove,
				Payload: map[string]any{"x": target.X, "y": target.Y},
			})

		o.executeStep(ctx,
			schemas.Action{
				Description: "Left click executed",
				Coordinates: &target,
				Status:      schemas.StatusInProgress,
			},
			schemas.ExecutionRequest{
				Kind:    schemas.KindClick,
				Payload: map[string]any{"x": target.X, "y": target.Y, "button": "left"},
			})
	}

	if result.Command != "" {
		o.executeStep(ctx,
			schemas.Action{
				Description: fmt.Sprintf("Executing command: %s", result.Command),
				Status:      schemas.StatusInProgress,
			},
			schemas.ExecutionRequest{
				Kind:    schemas.KindCommand,
				Payload: map[string]any{"command": result.Command},
			})
	}
}

// executeStep logs one action, issues the matching executor request and
// flips the action to completed or error based on the outcome.
func (o *Orchestrator) executeStep(ctx context.Context, action schemas.Action, req schemas.ExecutionRequest) {
	id := o.actions.Append(action)

	result, err := o.executor.Execute(ctx, req)
	switch {
	case err != nil:
		o.actions.Update(id, statusPatch(schemas.StatusError))
		o.log.Warn("execution step rejected", zap.String("type", string(req.Kind)), zap.Error(err))
	case !result.Success:
		o.actions.Update(id, statusPatch(schemas.StatusError))
		o.log.Warn("execution step failed", zap.String("type", string(req.Kind)), zap.String("error", result.Error))
	default:
		o.actions.Update(id, statusPatch(schemas.StatusCompleted))
	}
}

// clampToFrame forces a suggested point into the captured frame's bounds.
// The model occasionally hallucinates coordinates past the edges; clamping
// keeps the run going instead of rejecting the whole suggestion.
func clampToFrame(c schemas.Coordinates, frame *schemas.Frame) schemas.Coordinates {
	if frame.Width > 0 {
		if c.X < 0 {
			c.X = 0
		}
		if c.X >= frame.Width {
			c.X = frame.Width - 1
		}
	}
	if frame.Height > 0 {
		if c.Y < 0 {
			c.Y = 0
		}
		if c.Y >= frame.Height {
			c.Y = frame.Height - 1
		}
	}
	return c
}

func patch(status schemas.ActionStatus, description string) schemas.ActionPatch {
	return schemas.ActionPatch{Status: &status, Description: &description}
}

func statusPatch(status schemas.ActionStatus) schemas.ActionPatch {
	return schemas.ActionPatch{Status: &status}
}
