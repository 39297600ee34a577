// Package provider implements the Provider Registry: a uniform contract over
// several LLM backends, both subprocess-launched CLI tools and native HTTP
// API clients, following the shape of the teacher's internal/perception
// LLMClient variants (ClaudeCodeCLIClient, CodexCLIClient, GeminiClient,
// AnthropicClient, ZAIClient) but collapsed to the narrower surface the
// pipeline actually needs: one invocation method, one availability probe,
// one timeout formula, no streaming, no tool calling.
package provider

import (
	"context"
	"fmt"
	"time"
)

// ErrorKind classifies a provider failure at the stage boundary, per
// SPEC_FULL.md's typed result discipline.
type ErrorKind string

const (
	// Unavailable means the provider cannot be invoked at all: the CLI
	// binary is not on PATH, or a required credential is unset.
	Unavailable ErrorKind = "unavailable"
	// Timeout means the invocation exceeded its computed deadline.
	Timeout ErrorKind = "timeout"
	// Truncated means the backend returned output cut off by a token
	// or length limit before completing its response.
	Truncated ErrorKind = "truncated"
	// APIError means the backend reported a non-success status or a
	// CLI subprocess exited non-zero.
	APIError ErrorKind = "api-error"
	// InvalidResponse means the backend returned empty or malformed
	// output that could not be parsed into a result.
	InvalidResponse ErrorKind = "invalid-response"
)

// Error is the typed failure every Client.Invoke returns in place of an
// untyped error, so callers at the stage boundary can switch on Kind
// instead of string-matching.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &provider.Error{Kind: provider.Unavailable}) match
// any *Error of the same Kind, whatever its Provider, Message or Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind ErrorKind, providerID, msg string, cause error) *Error {
	return &Error{Kind: kind, Provider: providerID, Message: msg, Cause: cause}
}

// Config carries the configuration surface spec.md §4.C names. A provider
// recognizes whichever fields apply to it and ignores the rest.
type Config struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	EnableThinking  bool // Gemini-only, per spec.md
}

// Client is the uniform contract every backend satisfies. Implementations
// MUST NOT share mutable state between instances (spec.md §4.C).
type Client interface {
	// ID returns the stable backend name used in progress records and logs.
	ID() string
	// Available reports whether the provider is ready to be invoked: CLI
	// binary on PATH, or required credentials present in the environment.
	Available(ctx context.Context) bool
	// MaxChunkSize is the character count a single prompt must not exceed.
	MaxChunkSize() int
	// Timeout returns the deadline to apply for a prompt of promptChars
	// length, tiered by content size with a provider-specific floor.
	Timeout(promptChars int) time.Duration
	// Invoke synchronously returns the provider's textual response, or a
	// typed *Error.
	Invoke(ctx context.Context, prompt string) (string, error)
}
