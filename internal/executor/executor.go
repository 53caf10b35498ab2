// File: internal/executor/executor.go
// Description: Simulated desktop executor. In a production deployment this
// would talk to a native companion process with OS access; the demo records
// and simulates every primitive instead. The audit history is intentionally
// in-memory only.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/config"
)

// ErrUnknownActionKind marks a request the executor refuses to run. The
// HTTP layer maps it to a 400; it must never be treated as a silent no-op.
var ErrUnknownActionKind = errors.New("executor: unknown action type")

// Simulated performs primitive desktop operations without touching the OS.
// Every invocation, accepted or rejected, lands in the audit history.
type Simulated struct {
	mu      sync.Mutex
	history []schemas.Invocation
	capture schemas.CaptureProvider
	cfg     config.ExecutorConfig
	log     *zap.Logger
}

// New returns a simulated executor. The capture provider backs the
// "screenshot" kind; it may be nil, in which case screenshots serve
// placeholder data.
func New(cfg config.ExecutorConfig, capture schemas.CaptureProvider, logger *zap.Logger) *Simulated {
	return &Simulated{
		capture: capture,
		cfg:     cfg,
		log:     logger.Named("executor"),
	}
}

// Execute dispatches one primitive operation. The returned error is non-nil
// only for rejected requests (unknown kind, cancelled context); operation
// failures are reported inside the result.
func (e *Simulated) Execute(ctx context.Context, req schemas.ExecutionRequest) (*schemas.ExecutionResult, error) {
	inv := schemas.Invocation{
		ID:        fmt.Sprintf("exec-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8]),
		Kind:      req.Kind,
		Payload:   req.Payload,
		Timestamp: time.Now(),
	}
	e.record(inv)

	if !schemas.KnownKind(req.Kind) {
		e.log.Warn("rejected action request", zap.String("type", string(req.Kind)))
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionKind, req.Kind)
	}

	result := &schemas.ExecutionResult{Success: true, Invocation: inv}
	var err error
	switch req.Kind {
	case schemas.KindScreenshot:
		result.Result, err = e.screenshot(ctx)
	case schemas.KindClick:
		result.Result, err = e.click(ctx, req.Payload)
	case schemas.KindType:
		result.Result, err = e.typeText(ctx, req.Payload)
	case schemas.KindMove:
		result.Result, err = e.move(ctx, req.Payload)
	case schemas.KindCommand:
		result.Result, err = e.command(ctx, req.Payload)
	case schemas.KindFileOperation:
		result.Result, err = e.fileOperation(ctx, req.Payload)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Success = false
		result.Error = err.Error()
		result.Result = nil
	}

	e.log.Debug("action executed",
		zap.String("type", string(req.Kind)),
		zap.Bool("success", result.Success))
	return result, nil
}

// History returns a copy of the audit trail in invocation order.
func (e *Simulated) History() []schemas.Invocation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]schemas.Invocation, len(e.history))
	copy(out, e.history)
	return out
}

// ClearHistory empties the audit trail.
func (e *Simulated) ClearHistory() {
	e.mu.Lock()
	e.history = nil
	e.mu.Unlock()
	e.log.Info("action history cleared")
}

func (e *Simulated) record(inv schemas.Invocation) {
	e.mu.Lock()
	e.history = append(e.history, inv)
	e.mu.Unlock()
}

func (e *Simulated) screenshot(ctx context.Context) (any, error) {
	if e.capture != nil && e.capture.Active() {
		frame, err := e.capture.Frame(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"screenshot": frame.Data,
			"width":      frame.Width,
			"height":     frame.Height,
		}, nil
	}
	// No live source; serve the placeholder the demo always served.
	return map[string]any{
		"screenshot": "mock-screenshot-data",
		"width":      1920,
		"height":     1080,
	}, nil
}

func (e *Simulated) click(ctx context.Context, payload map[string]any) (any, error) {
	x, y, err := coords(payload)
	if err != nil {
		return nil, err
	}
	button, _ := payload["button"].(string)
	if button == "" {
		button = "left"
	}
	if err := e.sleep(ctx, e.cfg.ClickDelay); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Clicked at (%d, %d) with %s button", x, y, button), nil
}

func (e *Simulated) move(ctx context.Context, payload map[string]any) (any, error) {
	x, y, err := coords(payload)
	if err != nil {
		return nil, err
	}
	if err := e.sleep(ctx, e.cfg.MoveDelay); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Moved to (%d, %d)", x, y), nil
}

func (e *Simulated) typeText(ctx context.Context, payload map[string]any) (any, error) {
	text, _ := payload["text"].(string)
	if text == "" {
		return nil, errors.New("type requires a text payload")
	}
	// Per-character delay, capped so absurd inputs cannot stall the run.
	delay := time.Duration(len(text)) * e.cfg.TypeDelay
	if delay > 2*time.Second {
		delay = 2 * time.Second
	}
	if err := e.sleep(ctx, delay); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Typed: %s", text), nil
}

func (e *Simulated) command(ctx context.Context, payload map[string]any) (any, error) {
	cmd, _ := payload["command"].(string)
	if cmd == "" {
		return nil, errors.New("command requires a command payload")
	}
	if err := e.sleep(ctx, e.cfg.CommandDelay); err != nil {
		return nil, err
	}
	// Commands are only ever simulated here. Running them for real needs
	// sandboxing this demo does not have.
	return map[string]any{
		"stdout":   fmt.Sprintf("Simulated execution of: %s", cmd),
		"stderr":   "",
		"exitCode": 0,
	}, nil
}

func (e *Simulated) fileOperation(ctx context.Context, payload map[string]any) (any, error) {
	op, _ := payload["operation"].(string)
	switch op {
	case "create", "move", "copy", "delete", "organize":
	default:
		return nil, fmt.Errorf("unsupported file operation %q", op)
	}
	paths, _ := payload["paths"].([]any)
	if err := e.sleep(ctx, e.cfg.FileOpDelay); err != nil {
		return nil, err
	}
	return fmt.Sprintf("File operation %s completed for %d item(s)", op, len(paths)), nil
}

func (e *Simulated) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// coords pulls an {x, y} pair out of a JSON-decoded payload, accepting the
// float64 values encoding/json produces as well as plain ints.
func coords(payload map[string]any) (int, int, error) {
	x, okX := asInt(payload["x"])
	y, okY := asInt(payload["y"])
	if !okX || !okY {
		return 0, 0, errors.New("payload requires numeric x and y")
	}
	return x, y, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
