// api/schemas/schemas_test.go
package schemas

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewActionIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewActionID()
		assert.True(t, strings.HasPrefix(id, "act-"))
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestKnownKind(t *testing.T) {
	for _, kind := range []ActionKind{KindScreenshot, KindClick, KindType, KindMove, KindCommand, KindFileOperation} {
		assert.True(t, KnownKind(kind), "kind %q should be known", kind)
	}
	assert.False(t, KnownKind("teleport"))
	assert.False(t, KnownKind(""))
}

func TestCoordinatesString(t *testing.T) {
	c := Coordinates{X: 500, Y: 300}
	assert.Equal(t, "(500, 300)", c.String())
}
