package provider

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"

	"craskill/internal/config"
	"craskill/internal/logging"
)

// geminiClient calls the Gemini API through the official SDK, following the
// client-construction pattern of the teacher's GenAIEngine in
// internal/embedding/genai.go (genai.NewClient, client.Models.*), but for
// text generation rather than embeddings.
type geminiClient struct {
	apiKey          string
	model           string
	temperature     float64
	maxOutputTokens int32
	enableThinking  bool
}

func newGeminiClient(cfg config.ProviderConfig, apiKey string) *geminiClient {
	model := cfg.Model
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 65536
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.2
	}
	return &geminiClient{
		apiKey:          apiKey,
		model:           model,
		temperature:     temp,
		maxOutputTokens: int32(maxTokens),
		enableThinking:  cfg.EnableThinking,
	}
}

func (c *geminiClient) ID() string { return Gemini }

func (c *geminiClient) Available(ctx context.Context) bool { return c.apiKey != "" }

func (c *geminiClient) MaxChunkSize() int { return 500000 }

func (c *geminiClient) Timeout(promptChars int) time.Duration {
	if promptChars > 100000 {
		return 10 * time.Minute
	}
	if promptChars > 20000 {
		return 5 * time.Minute
	}
	return 2 * time.Minute
}

func (c *geminiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if !c.Available(ctx) {
		return "", newErr(Unavailable, c.ID(), "GEMINI_API_KEY not set", nil)
	}

	timeout := c.Timeout(len(prompt))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey})
	if err != nil {
		return "", newErr(APIError, c.ID(), "failed to create genai client", err)
	}

	temp := float32(c.temperature)
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: c.maxOutputTokens,
	}
	if c.enableThinking {
		genConfig.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	log := logging.Get(logging.CategoryProvider)
	start := time.Now()
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	result, err := client.Models.GenerateContent(ctx, c.model, contents, genConfig)
	log.Debug("gemini invoke: %d chars in %v", len(prompt), time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return "", newErr(Timeout, c.ID(), "context deadline exceeded", err)
		}
		return "", newErr(APIError, c.ID(), "GenerateContent failed", err)
	}
	if len(result.Candidates) == 0 {
		return "", newErr(InvalidResponse, c.ID(), "no candidates returned", nil)
	}

	cand := result.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return "", newErr(Truncated, c.ID(), "output truncated by max_output_tokens", nil)
	}

	var text strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", newErr(InvalidResponse, c.ID(), "empty completion", nil)
	}
	return out, nil
}
