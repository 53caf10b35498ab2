// internal/session/orchestrator_test.go
package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/actionlog"
	"github.com/nexus-desktop/nexus-agent/internal/capture"
)

// -- Mock Implementations for Testing --

type mockCapture struct {
	mu     sync.Mutex
	active bool
	err    error
	frame  schemas.Frame
}

func (m *mockCapture) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *mockCapture) Frame(context.Context) (*schemas.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	f := m.frame
	return &f, nil
}

type mockAnalyzer struct {
	mu      sync.Mutex
	result  *schemas.AnalysisResult
	err     error
	release chan struct{} // when non-nil, Analyze blocks until closed
	started chan struct{}
}

func (m *mockAnalyzer) Analyze(ctx context.Context, _ string, _ string) (*schemas.AnalysisResult, error) {
	m.mu.Lock()
	release, started := m.release, m.started
	m.started = nil // the started signal is one-shot; a second close would panic
	m.mu.Unlock()
	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	r := *m.result
	return &r, nil
}

func (m *mockAnalyzer) Ready() bool  { return false }
func (m *mockAnalyzer) Close() error { return nil }

type mockExecutor struct {
	mu       sync.Mutex
	requests []schemas.ExecutionRequest
	failKind schemas.ActionKind
}

func (m *mockExecutor) Execute(_ context.Context, req schemas.ExecutionRequest) (*schemas.ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	result := &schemas.ExecutionResult{Success: true}
	if m.failKind != "" && req.Kind == m.failKind {
		result.Success = false
		result.Error = "simulated failure"
	}
	return result, nil
}

func (m *mockExecutor) History() []schemas.Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schemas.Invocation, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, schemas.Invocation{Kind: req.Kind, Payload: req.Payload})
	}
	return out
}

func (m *mockExecutor) ClearHistory() {
	m.mu.Lock()
	m.requests = nil
	m.mu.Unlock()
}

type fixture struct {
	orch     *Orchestrator
	actions  *actionlog.Log
	capture  *mockCapture
	analyzer *mockAnalyzer
	executor *mockExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		actions:  actionlog.New(zap.NewNop()),
		capture:  &mockCapture{active: true, frame: schemas.Frame{Data: "img", Width: 1920, Height: 1080}},
		analyzer: &mockAnalyzer{result: &schemas.AnalysisResult{Action: "analyze", Confidence: 60, Reasoning: "nothing to do"}},
		executor: &mockExecutor{},
	}
	orch, err := New(
		f.actions,
		NewTranscript(),
		NewHighlight(500*time.Millisecond),
		f.capture,
		f.analyzer,
		f.executor,
		zap.NewNop(),
	)
	require.NoError(t, err)
	f.orch = orch
	t.Cleanup(orch.Highlight().Clear)
	return f
}

func assistantMessages(t *Transcript) []string {
	var out []string
	for _, msg := range t.List() {
		if msg.Role == schemas.RoleAssistant {
			out = append(out, msg.Content)
		}
	}
	return out
}

func TestNewRejectsNilDependencies(t *testing.T) {
	_, err := New(nil, nil, nil, nil, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestRunWhileInactiveLeavesLogUntouched(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Run(context.Background(), "open the browser")
	require.NoError(t, err)

	assert.Zero(t, f.actions.Len(), "inactive agent must not touch the action log")
	msgs := assistantMessages(f.orch.Transcript())
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1], "not active")
}

func TestRunWithoutCaptureSource(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.capture.active = false

	err := f.orch.Run(context.Background(), "open the browser")
	require.NoError(t, err)

	actions := f.actions.List()
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.StatusError, actions[0].Status)
	assert.Equal(t, "No active capture source", actions[0].Description)
}

func TestRunCaptureFailure(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.capture.err = capture.ErrFrameNotReady

	err := f.orch.Run(context.Background(), "open the browser")
	require.Error(t, err)

	actions := f.actions.List()
	require.Len(t, actions, 1, "a failed capture leaves exactly one action behind")
	assert.Equal(t, schemas.StatusError, actions[0].Status)
	assert.Equal(t, "Screen capture failed", actions[0].Description)
	assert.Empty(t, f.executor.History(), "nothing may execute after a failed capture")
}

func TestRunCapturePermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.capture.err = capture.ErrPermissionDenied

	err := f.orch.Run(context.Background(), "open the browser")
	require.ErrorIs(t, err, capture.ErrPermissionDenied)

	msgs := assistantMessages(f.orch.Transcript())
	assert.Contains(t, msgs[len(msgs)-1], "permission")
}

func TestRunAnalysisFailure(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.analyzer.result = nil
	f.analyzer.err = errors.New("model unavailable")

	err := f.orch.Run(context.Background(), "open the browser")
	require.Error(t, err)

	actions := f.actions.List()
	require.Len(t, actions, 3)
	assert.Equal(t, schemas.StatusCompleted, actions[0].Status)
	assert.Equal(t, schemas.StatusError, actions[1].Status)
	assert.Equal(t, "Visual analysis failed", actions[1].Description)
	assert.Equal(t, schemas.StatusError, actions[2].Status)
	assert.Contains(t, actions[2].Description, "model unavailable")
	assert.Empty(t, f.executor.History())
}

func TestRunWithoutSuggestedExecution(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.analyzer.result = &schemas.AnalysisResult{
		Action:     "organize_files",
		Confidence: 85,
		Reasoning:  "User wants to organize files",
	}
	transcriptBefore := f.orch.Transcript().Len()

	err := f.orch.Run(context.Background(), "please sort my desktop")
	require.NoError(t, err)

	// Capture, analyze, summary. No execute actions without coordinates or
	// a command.
	actions := f.actions.List()
	require.Len(t, actions, 3)
	assert.Equal(t, "Screen captured (1920x1080)", actions[0].Description)
	assert.Equal(t, "Visual analysis completed", actions[1].Description)
	assert.Equal(t, "Task completed successfully (confidence: 85%)", actions[2].Description)
	for _, action := range actions {
		assert.Equal(t, schemas.StatusCompleted, action.Status)
	}
	assert.Empty(t, f.executor.History())

	// User intent plus exactly one assistant reply.
	assert.Equal(t, transcriptBefore+2, f.orch.Transcript().Len())
	msgs := assistantMessages(f.orch.Transcript())
	assert.Equal(t, "User wants to organize files", msgs[len(msgs)-1])
}

func TestRunWithCoordinatesEmitsMoveThenClick(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.analyzer.result = &schemas.AnalysisResult{
		Action:      "click",
		Coordinates: &schemas.Coordinates{X: 500, Y: 300},
		Confidence:  75,
	}

	err := f.orch.Run(context.Background(), "click the button")
	require.NoError(t, err)

	history := f.executor.History()
	require.Len(t, history, 2)
	assert.Equal(t, schemas.KindMove, history[0].Kind)
	assert.Equal(t, schemas.KindClick, history[1].Kind)
	assert.Equal(t, 500, history[0].Payload["x"])
	assert.Equal(t, 300, history[0].Payload["y"])

	actions := f.actions.List()
	require.Len(t, actions, 5)
	assert.Equal(t, "Moving cursor to (500, 300)", actions[2].Description)
	assert.Equal(t, "Left click executed", actions[3].Description)
	require.NotNil(t, actions[2].Coordinates)
	require.NotNil(t, actions[3].Coordinates)
	assert.Equal(t, *actions[2].Coordinates, *actions[3].Coordinates)

	require.NotNil(t, f.orch.Highlight().Current())
}

func TestRunClampsOutOfFrameCoordinates(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.analyzer.result = &schemas.AnalysisResult{
		Action:      "click",
		Coordinates: &schemas.Coordinates{X: 5000, Y: -20},
		Confidence:  75,
	}

	err := f.orch.Run(context.Background(), "click the button")
	require.NoError(t, err)

	history := f.executor.History()
	require.Len(t, history, 2)
	assert.Equal(t, 1919, history[0].Payload["x"])
	assert.Equal(t, 0, history[0].Payload["y"])
}

func TestRunWithCommand(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.analyzer.result = &schemas.AnalysisResult{
		Action:     "open_application",
		Command:    "open",
		Confidence: 90,
	}

	err := f.orch.Run(context.Background(), "open the browser")
	require.NoError(t, err)

	history := f.executor.History()
	require.Len(t, history, 1)
	assert.Equal(t, schemas.KindCommand, history[0].Kind)
	assert.Equal(t, "open", history[0].Payload["command"])

	actions := f.actions.List()
	require.Len(t, actions, 4)
	assert.Equal(t, "Executing command: open", actions[2].Description)
}

func TestRunExecutionFailureStaysLocal(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.executor.failKind = schemas.KindCommand
	f.analyzer.result = &schemas.AnalysisResult{
		Action:     "open_application",
		Command:    "open",
		Confidence: 90,
	}

	err := f.orch.Run(context.Background(), "open the browser")
	require.NoError(t, err, "a failed execution step must not abort the run")

	actions := f.actions.List()
	require.Len(t, actions, 4)
	assert.Equal(t, schemas.StatusError, actions[2].Status)
	assert.Equal(t, schemas.StatusCompleted, actions[3].Status, "the summary still lands")
}

func TestRunRejectsOverlappingRuns(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	f.analyzer.release = make(chan struct{})
	f.analyzer.started = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- f.orch.Run(context.Background(), "first request")
	}()

	select {
	case <-f.analyzer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never reached analysis")
	}
	countDuringFirst := f.actions.Len()

	err := f.orch.Run(context.Background(), "second request")
	require.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, countDuringFirst, f.actions.Len(), "a refused run must leave the log untouched")

	close(f.analyzer.release)
	require.NoError(t, <-firstDone)

	// With the first run finished, new runs are accepted again.
	require.NoError(t, f.orch.Run(context.Background(), "third request"))
}

func TestSetActiveIsIdempotent(t *testing.T) {
	f := newFixture(t)

	before := f.orch.Transcript().Len()
	f.orch.SetActive(true)
	f.orch.SetActive(true)
	assert.Equal(t, before+1, f.orch.Transcript().Len(), "repeated activation must not repost the status message")

	f.orch.SetActive(false)
	assert.Equal(t, before+2, f.orch.Transcript().Len())
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	f.orch.SetActive(true)
	require.NoError(t, f.orch.Run(context.Background(), "open the browser"))
	require.NotZero(t, f.actions.Len())

	f.orch.Reset()

	assert.Zero(t, f.actions.Len())
	assert.False(t, f.orch.IsActive())
	msgs := f.orch.Transcript().List()
	require.Len(t, msgs, 1)
	assert.Equal(t, Greeting, msgs[0].Content)
}
