// File: api/schemas/interfaces.go
// Description: Collaborator contracts. The orchestrator is injected with
// these interfaces, keeping it decoupled from the concrete capture, analysis
// and execution implementations (and trivially mockable in tests).
package schemas

import "context"

// CaptureProvider supplies still frames from a screen-sharing source.
type CaptureProvider interface {
	// Active reports whether a capture source is currently available.
	// The orchestrator refuses to start a run while this is false.
	Active() bool
	// Frame captures one still image. It returns capture.ErrNoSource when
	// no source is shared, capture.ErrPermissionDenied when the user
	// refused access, or a provider-specific error for transient failures.
	Frame(ctx context.Context) (*Frame, error)
}

// AnalysisClient maps (frame, intent) to a structured suggestion. An empty
// image must be tolerated (demo mode), and "I don't know" is expressed as a
// low-confidence result with category "analyze", never as an error.
type AnalysisClient interface {
	Analyze(ctx context.Context, imageB64, userIntent string) (*AnalysisResult, error)
	// Ready reports whether a real model backs this client, as opposed to
	// the keyword-matching demo strategy.
	Ready() bool
	Close() error
}

// ActionExecutor performs or simulates primitive desktop operations. Every
// invocation is recorded for audit regardless of outcome; an unrecognized
// kind is a rejected request, not a no-op.
type ActionExecutor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
	History() []Invocation
	ClearHistory()
}

// ActionLog is the append-only, mutable-by-id record of a session's steps.
type ActionLog interface {
	// Append creates a new Action with a fresh id and timestamp and returns
	// the id. Status defaults to pending when the partial carries none.
	Append(partial Action) string
	// Update patches status/description/coordinates of an existing record.
	// Unknown ids are ignored; out-of-order updates must not fail the run.
	Update(id string, patch ActionPatch)
	Clear()
	// List returns a snapshot in insertion order, stable under updates.
	List() []Action
}

// ActionPatch carries the mutable fields of an Action. Nil fields are left
// untouched.
type ActionPatch struct {
	Description *string
	Status      *ActionStatus
	Coordinates *Coordinates
}
