// File: internal/session/transcript.go
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
)

// Greeting is the assistant message every fresh session opens with.
const Greeting = "Hello! I am Nexus, your desktop automation assistant. Describe what you would like to automate."

// Transcript is the ordered chat history of a session. Messages are
// immutable after creation and keep strict creation order.
type Transcript struct {
	mu       sync.RWMutex
	messages []schemas.ChatMessage
}

// NewTranscript returns a transcript seeded with the greeting.
func NewTranscript() *Transcript {
	t := &Transcript{}
	t.Add(schemas.RoleAssistant, Greeting)
	return t
}

// Add appends one message and returns its id.
func (t *Transcript) Add(role schemas.MessageRole, content string) string {
	msg := schemas.ChatMessage{
		ID:        fmt.Sprintf("msg-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8]),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	return msg.ID
}

// List returns a snapshot in creation order.
func (t *Transcript) List() []schemas.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]schemas.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset drops the history and re-greets.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()
	t.Add(schemas.RoleAssistant, Greeting)
}
