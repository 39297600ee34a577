package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"craskill/internal/config"
	"craskill/internal/logging"
)

// anthropicClient calls the Anthropic Messages API directly over HTTP,
// adapted from the teacher's AnthropicClient in
// internal/perception/client_anthropic.go (same endpoint, headers, and
// retry-on-429 behavior; streaming and Piggyback-specific handling dropped
// since this pipeline never streams).
type anthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

func newAnthropicClient(cfg config.ProviderConfig, apiKey string) *anthropicClient {
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250514"
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	return &anthropicClient{
		apiKey:      apiKey,
		baseURL:     "https://api.anthropic.com/v1",
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *anthropicClient) ID() string { return Anthropic }

func (c *anthropicClient) Available(ctx context.Context) bool { return c.apiKey != "" }

func (c *anthropicClient) MaxChunkSize() int { return 150000 }

func (c *anthropicClient) Timeout(promptChars int) time.Duration {
	if promptChars > 50000 {
		return 8 * time.Minute
	}
	if promptChars > 10000 {
		return 4 * time.Minute
	}
	return 2 * time.Minute
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *anthropicClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if !c.Available(ctx) {
		return "", newErr(Unavailable, c.ID(), "ANTHROPIC_API_KEY not set", nil)
	}

	timeout := c.Timeout(len(prompt))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", newErr(APIError, c.ID(), "failed to marshal request", err)
	}

	var lastErr error
	log := logging.Get(logging.CategoryProvider)
	for attempt := 0; attempt <= 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(jsonData))
		if err != nil {
			return "", newErr(APIError, c.ID(), "failed to build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		log.Debug("anthropic invoke attempt=%d %d chars in %v", attempt, len(prompt), time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return "", newErr(Timeout, c.ID(), fmt.Sprintf("exceeded %v", timeout), err)
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", newErr(APIError, c.ID(), fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)), nil)
		}

		var out anthropicResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", newErr(InvalidResponse, c.ID(), "could not parse response body", err)
		}
		if out.Error != nil {
			return "", newErr(APIError, c.ID(), out.Error.Message, nil)
		}
		if out.StopReason == "max_tokens" {
			return "", newErr(Truncated, c.ID(), "output truncated by max_tokens", nil)
		}

		var text strings.Builder
		for _, block := range out.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		result := strings.TrimSpace(text.String())
		if result == "" {
			return "", newErr(InvalidResponse, c.ID(), "empty completion", nil)
		}
		return result, nil
	}

	return "", newErr(APIError, c.ID(), "max retries exceeded", lastErr)
}
