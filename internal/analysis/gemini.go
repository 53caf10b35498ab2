// File: internal/analysis/gemini.go
package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	genai "google.golang.org/genai"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/config"
)

const analysisPrompt = `Analyze this screenshot and determine what action to take for this user intent: %q

Return a JSON object with:
- action: type of action (click, type, open, organize, analyze, ...)
- coordinates: {"x": number, "y": number} if a click is needed (omit otherwise)
- command: shell command if needed (omit otherwise)
- confidence: 0-100 confidence score
- reasoning: brief explanation of your analysis

Be precise and actionable. Only respond with valid JSON.`

// Gemini is the model-backed analysis client.
type Gemini struct {
	cli        *genai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	temp       float32
	fallback   *Mock
	log        *zap.Logger
}

// NewGemini builds an analysis client on the genai SDK.
func NewGemini(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: creating genai client: %w", err)
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	return &Gemini{
		cli:        cli,
		model:      cfg.Model,
		timeout:    cfg.APITimeout,
		maxRetries: retries,
		temp:       cfg.Temperature,
		fallback:   NewMock(logger),
		log:        logger.Named("analysis.gemini"),
	}, nil
}

func (g *Gemini) Ready() bool  { return true }
func (g *Gemini) Close() error { return nil }

// Analyze sends the frame and intent to the model and parses the JSON
// suggestion. A reply the model garbles falls back to the keyword strategy,
// mirroring the original service; transport errors are returned as-is so
// the orchestrator can abort the run.
func (g *Gemini) Analyze(ctx context.Context, imageB64, userIntent string) (*schemas.AnalysisResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	parts := []*genai.Part{{Text: fmt.Sprintf(analysisPrompt, userIntent)}}
	if imageB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(imageB64)
		if err != nil {
			return nil, fmt.Errorf("analysis: decoding screenshot: %w", err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/png", Data: raw},
		})
	}

	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(g.temp),
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: parts}}, genCfg)
		if err != nil {
			lastErr = err
			g.log.Warn("model call failed", zap.Int("attempt", attempt+1), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
			}
			continue
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("analysis: empty model response")
			continue
		}
		text := resp.Candidates[0].Content.Parts[0].Text
		result, ok := g.parse(text)
		if !ok {
			// The model answered but not with usable JSON. The original
			// service degrades to the keyword strategy here.
			g.log.Warn("unparseable model reply, using keyword fallback", zap.Int("bytes", len(text)))
			return g.fallback.Analyze(ctx, imageB64, userIntent)
		}
		return result, nil
	}
	return nil, fmt.Errorf("analysis: model call failed after %d attempts: %w", g.maxRetries, lastErr)
}

func (g *Gemini) parse(text string) (*schemas.AnalysisResult, bool) {
	blob := extractJSON(text)
	if blob == "" {
		return nil, false
	}
	var result schemas.AnalysisResult
	if err := json.Unmarshal([]byte(blob), &result); err != nil {
		return nil, false
	}
	result.Confidence = clampConfidence(result.Confidence)
	if result.Action == "" {
		result.Action = "analyze"
	}
	return &result, true
}
