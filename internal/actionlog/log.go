// File: internal/actionlog/log.go
// Description: In-memory action log store. Append-only with respect to
// identity; updates patch an existing record in place and never reorder it.
package actionlog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
)

// Observer receives the full ordered snapshot after every mutation.
type Observer func(actions []schemas.Action)

// Log is the session-owned action log. Writes come from a single
// orchestration run at a time, but reads (UI, realtime push) are external,
// so access is guarded anyway.
type Log struct {
	mu        sync.RWMutex
	actions   []schemas.Action
	observers []Observer
	log       *zap.Logger
}

// New returns an empty log.
func New(logger *zap.Logger) *Log {
	return &Log{log: logger.Named("actionlog")}
}

// Append creates a new Action from the partial record and appends it as the
// last element. ID and Timestamp are always freshly assigned here; a status
// missing from the partial defaults to pending.
func (l *Log) Append(partial schemas.Action) string {
	action := partial
	action.ID = schemas.NewActionID()
	action.Timestamp = time.Now()
	if action.Status == "" {
		action.Status = schemas.StatusPending
	}

	l.mu.Lock()
	l.actions = append(l.actions, action)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.log.Debug("action appended",
		zap.String("id", action.ID),
		zap.String("status", string(action.Status)),
		zap.String("description", action.Description))
	l.notify(snapshot)
	return action.ID
}

// Update patches the record with the given id. Only non-nil patch fields are
// applied; ID and Timestamp are immutable. A missing id is a silent no-op so
// duplicate or out-of-order updates cannot fail a run.
func (l *Log) Update(id string, patch schemas.ActionPatch) {
	l.mu.Lock()
	var snapshot []schemas.Action
	for i := range l.actions {
		if l.actions[i].ID != id {
			continue
		}
		if patch.Status != nil {
			l.actions[i].Status = *patch.Status
		}
		if patch.Description != nil {
			l.actions[i].Description = *patch.Description
		}
		if patch.Coordinates != nil {
			l.actions[i].Coordinates = patch.Coordinates
		}
		snapshot = l.snapshotLocked()
		break
	}
	l.mu.Unlock()

	if snapshot != nil {
		l.notify(snapshot)
	}
}

// Clear empties the log. Previously issued ids simply cease to resolve.
func (l *Log) Clear() {
	l.mu.Lock()
	l.actions = nil
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.log.Debug("action log cleared")
	l.notify(snapshot)
}

// List returns a copy of the log in insertion order.
func (l *Log) List() []schemas.Action {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// Len reports the number of records currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.actions)
}

// Subscribe registers an observer called with the full snapshot after every
// append, update and clear. Observers run on the mutating goroutine and must
// not call back into the log.
func (l *Log) Subscribe(fn Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

func (l *Log) snapshotLocked() []schemas.Action {
	out := make([]schemas.Action, len(l.actions))
	copy(out, l.actions)
	return out
}

func (l *Log) notify(snapshot []schemas.Action) {
	l.mu.RLock()
	observers := make([]Observer, len(l.observers))
	copy(observers, l.observers)
	l.mu.RUnlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}
