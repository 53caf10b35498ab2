// File: internal/analysis/analysis.go
// Description: Analysis clients mapping (frame, intent) to a structured
// action suggestion. The real Gemini client and the keyword-matching demo
// strategy sit behind the same contract and are selected by configuration,
// never by a hidden conditional inside the request path.
package analysis

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/config"
)

// New selects the analysis strategy for the given configuration: Gemini
// when an API key is present and the provider allows it, otherwise the
// keyword matcher.
func New(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (schemas.AnalysisClient, error) {
	if cfg.Provider == "gemini" && cfg.APIKey != "" {
		client, err := NewGemini(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("analysis client ready", zap.String("provider", "gemini"), zap.String("model", cfg.Model))
		return client, nil
	}
	logger.Info("analysis client running in demo mode (no API key)")
	return NewMock(logger), nil
}

// extractJSON returns the first top-level JSON object embedded in s, or ""
// when none is present. Models wrap their JSON in prose or code fences
// often enough that this cannot be skipped.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// clampConfidence forces a confidence score into the contract's 0-100 range.
func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
