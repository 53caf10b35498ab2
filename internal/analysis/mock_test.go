// internal/analysis/mock_test.go
package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/config"
)

func TestMockKeywordMatching(t *testing.T) {
	m := NewMock(zap.NewNop())

	testCases := []struct {
		name       string
		intent     string
		action     string
		command    string
		confidence int
		coords     *schemas.Coordinates
	}{
		{name: "organize english", intent: "please organize my downloads", action: "organize_files", command: "organize", confidence: 85},
		{name: "organize french", intent: "range mes fichiers", action: "organize_files", command: "organize", confidence: 85},
		{name: "open english", intent: "Open the calculator", action: "open_application", command: "open", confidence: 90},
		{name: "open french", intent: "ouvre le navigateur", action: "open_application", command: "open", confidence: 90},
		{name: "create", intent: "create a new folder", action: "create", command: "mkdir", confidence: 88},
		{name: "create french unaccented", intent: "cree un dossier", action: "create", command: "mkdir", confidence: 88},
		{name: "click", intent: "click the submit button", action: "click", confidence: 75, coords: &schemas.Coordinates{X: 500, Y: 300}},
		{name: "click french", intent: "clique sur le bouton", action: "click", confidence: 75, coords: &schemas.Coordinates{X: 500, Y: 300}},
		{name: "fallback", intent: "what is on my screen", action: "analyze", confidence: 60},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := m.Analyze(context.Background(), "", tc.intent)
			require.NoError(t, err)
			assert.Equal(t, tc.action, result.Action)
			assert.Equal(t, tc.command, result.Command)
			assert.Equal(t, tc.confidence, result.Confidence)
			assert.NotEmpty(t, result.Reasoning)
			if tc.coords != nil {
				require.NotNil(t, result.Coordinates)
				assert.Equal(t, *tc.coords, *result.Coordinates)
			} else {
				assert.Nil(t, result.Coordinates)
			}
		})
	}
}

func TestMockIsCaseInsensitive(t *testing.T) {
	m := NewMock(zap.NewNop())

	result, err := m.Analyze(context.Background(), "", "OPEN THE BROWSER")
	require.NoError(t, err)
	assert.Equal(t, "open_application", result.Action)
}

func TestMockIgnoresScreenshot(t *testing.T) {
	m := NewMock(zap.NewNop())

	// The keyword strategy never inspects the frame; an empty screenshot
	// must not change the outcome.
	result, err := m.Analyze(context.Background(), "", "click here")
	require.NoError(t, err)
	assert.Equal(t, "click", result.Action)
}

func TestMockReportsNotReady(t *testing.T) {
	m := NewMock(zap.NewNop())
	assert.False(t, m.Ready())
}

func TestExtractJSON(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare object", input: `{"action":"click"}`, want: `{"action":"click"}`},
		{name: "code fence", input: "```json\n{\"action\":\"click\"}\n```", want: `{"action":"click"}`},
		{name: "prose wrapper", input: `Sure! Here you go: {"action":"click"} Hope that helps.`, want: `{"action":"click"}`},
		{name: "no object", input: "I cannot help with that.", want: ""},
		{name: "empty", input: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.input))
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0, clampConfidence(-5))
	assert.Equal(t, 100, clampConfidence(250))
	assert.Equal(t, 60, clampConfidence(60))
}

func TestNewFallsBackWithoutAPIKey(t *testing.T) {
	client, err := New(context.Background(), testAIConfig(""), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, client.Ready())
}

func testAIConfig(apiKey string) config.AIConfig {
	return config.AIConfig{
		Provider:   "gemini",
		Model:      "gemini-2.5-flash",
		APIKey:     apiKey,
		MaxRetries: 1,
	}
}
