// internal/analysis/gemini_test.go
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGeminiParse(t *testing.T) {
	g := &Gemini{fallback: NewMock(zap.NewNop()), log: zap.NewNop()}

	t.Run("well formed reply", func(t *testing.T) {
		result, ok := g.parse(`{"action":"click","coordinates":{"x":120,"y":80},"confidence":92,"reasoning":"button visible"}`)
		require.True(t, ok)
		assert.Equal(t, "click", result.Action)
		require.NotNil(t, result.Coordinates)
		assert.Equal(t, 120, result.Coordinates.X)
		assert.Equal(t, 92, result.Confidence)
	})

	t.Run("fenced reply", func(t *testing.T) {
		result, ok := g.parse("```json\n{\"action\":\"type\",\"confidence\":70}\n```")
		require.True(t, ok)
		assert.Equal(t, "type", result.Action)
	})

	t.Run("confidence clamped", func(t *testing.T) {
		result, ok := g.parse(`{"action":"click","confidence":450}`)
		require.True(t, ok)
		assert.Equal(t, 100, result.Confidence)
	})

	t.Run("missing action defaults", func(t *testing.T) {
		result, ok := g.parse(`{"confidence":50}`)
		require.True(t, ok)
		assert.Equal(t, "analyze", result.Action)
	})

	t.Run("prose only", func(t *testing.T) {
		_, ok := g.parse("I cannot determine an action from this screenshot.")
		assert.False(t, ok)
	})

	t.Run("broken json", func(t *testing.T) {
		_, ok := g.parse(`{"action": "click",`)
		assert.False(t, ok)
	})
}
