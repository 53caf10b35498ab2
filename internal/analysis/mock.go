// File: internal/analysis/mock.go
package analysis

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
)

// Mock is the keyword-matching demo strategy. It always returns a valid
// result; an intent it cannot place comes back as a low-confidence
// "analyze" suggestion rather than an error.
type Mock struct {
	log *zap.Logger
}

// NewMock returns the demo analysis client.
func NewMock(logger *zap.Logger) *Mock {
	return &Mock{log: logger.Named("analysis.mock")}
}

func (m *Mock) Ready() bool  { return false }
func (m *Mock) Close() error { return nil }

// Analyze matches the intent against a small keyword table. The French
// variants are kept alongside the English ones; the original demo was
// bilingual and the keywords cost nothing.
func (m *Mock) Analyze(_ context.Context, _ string, userIntent string) (*schemas.AnalysisResult, error) {
	lower := strings.ToLower(userIntent)

	switch {
	case containsAny(lower, "range", "organise", "organize"):
		return &schemas.AnalysisResult{
			Action:     "organize_files",
			Command:    "organize",
			Confidence: 85,
			Reasoning:  "User wants to organize files based on intent keywords",
		}, nil
	case containsAny(lower, "ouvre", "open"):
		return &schemas.AnalysisResult{
			Action:     "open_application",
			Command:    "open",
			Confidence: 90,
			Reasoning:  "User wants to open an application",
		}, nil
	case containsAny(lower, "crée", "cree", "create"):
		return &schemas.AnalysisResult{
			Action:     "create",
			Command:    "mkdir",
			Confidence: 88,
			Reasoning:  "User wants to create something (folder/file)",
		}, nil
	case containsAny(lower, "clique", "click"):
		return &schemas.AnalysisResult{
			Action:      "click",
			Coordinates: &schemas.Coordinates{X: 500, Y: 300},
			Confidence:  75,
			Reasoning:   "User wants to click on an element",
		}, nil
	}

	return &schemas.AnalysisResult{
		Action:     "analyze",
		Confidence: 60,
		Reasoning:  "General analysis needed - command not clearly identified",
	}, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
