// internal/session/highlight_test.go
package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
)

func TestHighlightAutoClears(t *testing.T) {
	h := NewHighlight(30 * time.Millisecond)

	cleared := make(chan struct{})
	h.OnClear(func() { close(cleared) })

	h.Set(schemas.Coordinates{X: 10, Y: 20})
	require.NotNil(t, h.Current())

	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("highlight never auto-cleared")
	}
	assert.Nil(t, h.Current())
}

func TestHighlightSetRearmsTimer(t *testing.T) {
	h := NewHighlight(time.Hour)

	h.Set(schemas.Coordinates{X: 1, Y: 1})
	h.Set(schemas.Coordinates{X: 2, Y: 2})

	current := h.Current()
	require.NotNil(t, current)
	assert.Equal(t, schemas.Coordinates{X: 2, Y: 2}, *current)

	h.Clear()
	assert.Nil(t, h.Current())
}

func TestHighlightClearWithoutSet(t *testing.T) {
	h := NewHighlight(time.Hour)
	fired := false
	h.OnClear(func() { fired = true })

	h.Clear()
	assert.False(t, fired, "clearing an empty highlight must not fire the callback")
}

func TestTranscriptReset(t *testing.T) {
	tr := NewTranscript()
	tr.Add(schemas.RoleUser, "hello")
	require.Equal(t, 2, tr.Len())

	tr.Reset()
	msgs := tr.List()
	require.Len(t, msgs, 1)
	assert.Equal(t, schemas.RoleAssistant, msgs[0].Role)
	assert.Equal(t, Greeting, msgs[0].Content)
}
