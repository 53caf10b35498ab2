// File: api/schemas/schemas.go
// Description: Data contracts shared by the orchestrator, the HTTP API and the
// realtime channel. These types are the wire format of the demo; handlers and
// the websocket hub serialize them as-is.
package schemas

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionStatus is the lifecycle state of one logged orchestration step.
type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusInProgress ActionStatus = "in-progress"
	StatusCompleted  ActionStatus = "completed"
	StatusError      ActionStatus = "error"
)

// Coordinates is a screen point in unscaled pixels, origin top-left of the
// captured frame.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Action is one step of an orchestration run. ID and Timestamp are assigned
// at creation and never change afterwards; status updates mutate the record
// in place without moving it.
type Action struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Status      ActionStatus `json:"status"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewActionID returns an id that is both unguessable and monotonically
// ordered by creation time within a process.
func NewActionID() string {
	return fmt.Sprintf("act-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// MessageRole distinguishes the two sides of the transcript.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one turn of the visible transcript. Messages are never
// mutated after creation and keep strict creation order.
type ChatMessage struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// AnalysisResult is the structured suggestion returned by the analysis
// client for a (frame, intent) pair. Response, when set, is the preferred
// user-facing reply; Reasoning is the fallback.
type AnalysisResult struct {
	Action      string       `json:"action"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Command     string       `json:"command,omitempty"`
	Confidence  int          `json:"confidence"`
	Reasoning   string       `json:"reasoning"`
	Response    string       `json:"response,omitempty"`
}

// Frame is one still image from the capture source. Data is base64-encoded
// PNG without the data-URL prefix.
type Frame struct {
	Data   string `json:"data"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ActionKind enumerates the primitive operations the executor understands.
type ActionKind string

const (
	KindScreenshot    ActionKind = "screenshot"
	KindClick         ActionKind = "click"
	KindType          ActionKind = "type"
	KindMove          ActionKind = "move"
	KindCommand       ActionKind = "command"
	KindFileOperation ActionKind = "file_operation"
)

// KnownKind reports whether k is one of the kinds the executor accepts.
func KnownKind(k ActionKind) bool {
	switch k {
	case KindScreenshot, KindClick, KindType, KindMove, KindCommand, KindFileOperation:
		return true
	}
	return false
}

// ExecutionRequest asks the executor to perform one primitive operation.
type ExecutionRequest struct {
	Kind    ActionKind     `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Invocation is the audit record of a single executor call. Every request
// produces one, whether it succeeded, failed, or was rejected outright.
type Invocation struct {
	ID        string         `json:"id"`
	Kind      ActionKind     `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ExecutionResult is what the executor returns for an accepted request.
type ExecutionResult struct {
	Success    bool       `json:"success"`
	Invocation Invocation `json:"action"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Event is the envelope for all realtime channel traffic, both directions.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
