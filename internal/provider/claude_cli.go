package provider

import (
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

// claudeCLIClient invokes the Claude Code CLI subprocess, prompt on stdin,
// adapted from the teacher's ClaudeCodeCLIClient in
// internal/perception/claude_cli_client.go.
type claudeCLIClient struct {
	model   string
	timeout time.Duration
}

func newClaudeCLIClient(cfg config.ProviderConfig) *claudeCLIClient {
	model := cfg.Model
	if model == "" {
		model = "sonnet"
	}
	return &claudeCLIClient{model: model, timeout: 300 * time.Second}
}

func (c *claudeCLIClient) ID() string { return ClaudeCLI }

func (c *claudeCLIClient) Available(ctx context.Context) bool {
	_, err := exec.LookPath("claude")
	return err == nil
}

func (c *claudeCLIClient) MaxChunkSize() int { return 60000 }

// Timeout grows with prompt size on top of a 120s floor, matching the
// teacher's 300s flat CLI timeout but tiered per spec.md §4.C.
func (c *claudeCLIClient) Timeout(promptChars int) time.Duration {
	floor := 120 * time.Second
	if promptChars > 20000 {
		return 300 * time.Second
	}
	if promptChars > 8000 {
		return 180 * time.Second
	}
	return floor
}

type claudeCLIResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *claudeCLIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if !c.Available(ctx) {
		return "", newErr(Unavailable, c.ID(), "claude binary not found on PATH", nil)
	}

	timeout := c.Timeout(len(prompt))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-p", "--output-format", "json", "--model", c.model}
	cmd := exec.CommandContext(ctx, "claude", args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := logging.Get(logging.CategoryProvider)
	start := time.Now()
	err := cmd.Run()
	log.Debug("claude-cli invoke: %d chars in %v", len(prompt), time.Since(start))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", newErr(Timeout, c.ID(), fmt.Sprintf("exceeded %v", timeout), err)
		}
		return "", newErr(APIError, c.ID(), stderr.String(), err)
	}

	var resp claudeCLIResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", newErr(InvalidResponse, c.ID(), "could not parse JSON output", err)
	}
	if resp.Error != nil {
		return "", newErr(APIError, c.ID(), resp.Error.Message, nil)
	}

	var text strings.Builder
	for _, block := range resp.Result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", newErr(InvalidResponse, c.ID(), "empty completion", nil)
	}
	return out, nil
}
