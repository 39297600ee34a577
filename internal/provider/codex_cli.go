package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"craskill/internal/config"
	"craskill/internal/logging"
)

// codexCLIClient invokes the Codex CLI subprocess with the prompt passed as
// an argv argument (spec.md §4.C: "prompt delivered ... on argv for
// Gemini/Codex-class providers"), adapted from the teacher's
// CodexCLIClient in internal/perception/codex_cli_client.go, whose NDJSON
// event parsing this reuses.
type codexCLIClient struct {
	model   string
	sandbox string
	timeout time.Duration
}

func newCodexCLIClient(cfg config.ProviderConfig) *codexCLIClient {
	model := cfg.Model
	if model == "" {
		model = "gpt-5.1-codex-max"
	}
	return &codexCLIClient{model: model, sandbox: "read-only", timeout: 300 * time.Second}
}

func (c *codexCLIClient) ID() string { return CodexCLI }

func (c *codexCLIClient) Available(ctx context.Context) bool {
	_, err := exec.LookPath("codex")
	return err == nil
}

func (c *codexCLIClient) MaxChunkSize() int { return 80000 }

func (c *codexCLIClient) Timeout(promptChars int) time.Duration {
	if promptChars > 20000 {
		return 300 * time.Second
	}
	return 150 * time.Second
}

type codexNDJSONEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content,omitempty"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *codexCLIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if !c.Available(ctx) {
		return "", newErr(Unavailable, c.ID(), "codex binary not found on PATH", nil)
	}

	timeout := c.Timeout(len(prompt))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"exec", prompt, "--model", c.model, "--sandbox", c.sandbox, "--json", "--color", "never"}
	cmd := exec.CommandContext(ctx, "codex", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := logging.Get(logging.CategoryProvider)
	start := time.Now()
	err := cmd.Run()
	log.Debug("codex-cli invoke: %d chars in %v", len(prompt), time.Since(start))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", newErr(Timeout, c.ID(), fmt.Sprintf("exceeded %v", timeout), err)
		}
		return "", newErr(APIError, c.ID(), stderr.String(), err)
	}

	return parseCodexNDJSON(stdout.Bytes(), c.ID())
}

func parseCodexNDJSON(data []byte, providerID string) (string, error) {
	if len(data) == 0 {
		return "", newErr(InvalidResponse, providerID, "empty NDJSON stream", nil)
	}

	var deltaText, finalText strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event codexNDJSONEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if event.Error != nil {
			return "", newErr(APIError, providerID, event.Error.Message, nil)
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" {
				deltaText.WriteString(event.Delta.Text)
			}
		case "message_stop":
			if event.Message != nil {
				finalText.Reset()
				for _, content := range event.Message.Content {
					if content.Type == "text" {
						finalText.WriteString(content.Text)
					}
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", newErr(InvalidResponse, providerID, "error reading NDJSON stream", err)
	}

	result := strings.TrimSpace(finalText.String())
	if result == "" {
		result = strings.TrimSpace(deltaText.String())
	}
	if result == "" {
		return "", newErr(InvalidResponse, providerID, "no text content in response", nil)
	}
	return result, nil
}
