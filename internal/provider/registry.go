package provider

import (
	"fmt"
	"os"

	"craskill/internal/config"
)

// Known engine names, mirroring the teacher's client_factory.go DetectProvider
// switch but trimmed to the five backends this pipeline ships.
const (
	ClaudeCLI = "claude-cli"
	CodexCLI  = "codex-cli"
	Gemini    = "gemini"
	Anthropic = "anthropic"
	GLM       = "glm"
)

// New resolves a ProviderConfig's Engine name to a concrete Client. Credential
// lookup falls back to the process environment, per spec.md §6:
// GLM_API_KEY, GEMINI_API_KEY, ANTHROPIC_API_KEY. An empty engine name
// resolves to claude-cli; an unrecognized engine name returns an error. A
// known backend with no usable credential or binary does not fail
// construction; the resulting Client simply reports Available()==false.
func New(cfg config.ProviderConfig) (Client, error) {
	switch cfg.Engine {
	case ClaudeCLI, "":
		return newClaudeCLIClient(cfg), nil
	case CodexCLI:
		return newCodexCLIClient(cfg), nil
	case Gemini:
		return newGeminiClient(cfg, os.Getenv("GEMINI_API_KEY")), nil
	case Anthropic:
		return newAnthropicClient(cfg, os.Getenv("ANTHROPIC_API_KEY")), nil
	case GLM:
		return newGLMClient(cfg, os.Getenv("GLM_API_KEY")), nil
	default:
		return nil, fmt.Errorf("provider: unknown engine %q", cfg.Engine)
	}
}
