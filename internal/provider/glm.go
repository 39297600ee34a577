package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"craskill/internal/config"
	"craskill/internal/logging"
)

// glmClient calls the Z.AI GLM coding API directly over HTTP, adapted from
// the teacher's ZAIClient in internal/perception/client_zai.go: same base
// URL and model family, the same bounded concurrency (Z.AI caps 5 concurrent
// requests) and exponential-backoff-with-jitter retry, collapsed to a single
// synchronous call with no streaming path.
type glmClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client

	sem chan struct{}

	mu            sync.Mutex
	lastRequest   time.Time
	cooldownUntil time.Time

	retryBackoffBase time.Duration
	retryBackoffMax  time.Duration
	maxRetries       int

	randMu sync.Mutex
	rng    *rand.Rand
}

func newGLMClient(cfg config.ProviderConfig, apiKey string) *glmClient {
	model := cfg.Model
	if model == "" {
		model = "glm-4.7"
	}
	return &glmClient{
		apiKey:           apiKey,
		baseURL:          "https://api.z.ai/api/coding/paas/v4",
		model:            model,
		temperature:      cfg.Temperature,
		httpClient:       &http.Client{Timeout: 5 * time.Minute},
		sem:              make(chan struct{}, 5),
		retryBackoffBase: 1 * time.Second,
		retryBackoffMax:  30 * time.Second,
		maxRetries:       3,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *glmClient) ID() string { return GLM }

func (c *glmClient) Available(ctx context.Context) bool { return c.apiKey != "" }

func (c *glmClient) MaxChunkSize() int { return 100000 }

func (c *glmClient) Timeout(promptChars int) time.Duration {
	if promptChars > 40000 {
		return 6 * time.Minute
	}
	if promptChars > 10000 {
		return 3 * time.Minute
	}
	return 2 * time.Minute
}

func (c *glmClient) jitter(d time.Duration) time.Duration {
	c.randMu.Lock()
	factor := 0.5 + 0.5*c.rng.Float64()
	c.randMu.Unlock()
	return time.Duration(float64(d) * factor)
}

func (c *glmClient) nextRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.retryBackoffBase * time.Duration(1<<uint(attempt-1))
	if delay > c.retryBackoffMax {
		delay = c.retryBackoffMax
	}
	return c.jitter(delay)
}

type glmRequest struct {
	Model       string       `json:"model"`
	Messages    []glmMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
}

type glmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type glmResponse struct {
	Choices []struct {
		Message      glmMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *glmClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if !c.Available(ctx) {
		return "", newErr(Unavailable, c.ID(), "GLM_API_KEY not set", nil)
	}

	timeout := c.Timeout(len(prompt))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return "", newErr(Timeout, c.ID(), "timed out waiting for request slot", ctx.Err())
	}

	reqBody := glmRequest{
		Model:       c.model,
		Messages:    []glmMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", newErr(APIError, c.ID(), "failed to marshal request", err)
	}

	log := logging.Get(logging.CategoryProvider)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.nextRetryDelay(attempt)):
			case <-ctx.Done():
				return "", newErr(Timeout, c.ID(), fmt.Sprintf("exceeded %v", timeout), ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", newErr(APIError, c.ID(), "failed to build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		log.Debug("glm invoke attempt=%d %d chars in %v", attempt, len(prompt), time.Since(start))
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
			c.mu.Lock()
			c.cooldownUntil = time.Now().Add(c.nextRetryDelay(attempt + 1))
			c.mu.Unlock()
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", newErr(APIError, c.ID(), fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)), nil)
		}

		var out glmResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", newErr(InvalidResponse, c.ID(), "could not parse response body", err)
		}
		if out.Error != nil {
			return "", newErr(APIError, c.ID(), out.Error.Message, nil)
		}
		if len(out.Choices) == 0 {
			return "", newErr(InvalidResponse, c.ID(), "no choices returned", nil)
		}
		choice := out.Choices[0]
		if choice.FinishReason == "length" {
			return "", newErr(Truncated, c.ID(), "output truncated by max length", nil)
		}
		result := strings.TrimSpace(choice.Message.Content)
		if result == "" {
			return "", newErr(InvalidResponse, c.ID(), "empty completion", nil)
		}
		return result, nil
	}

	return "", newErr(APIError, c.ID(), "max retries exceeded", lastErr)
}
