// Package config holds the pipeline's YAML-backed configuration, following
// the teacher's config.Config / DefaultConfig() pattern: typed nested
// structs per concern, defaults supplied by a constructor, values
// overridable by environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Extract  ExtractConfig  `yaml:"extract"`
	Chunk    ChunkConfig    `yaml:"chunk"`
	Enhance  EnhanceConfig  `yaml:"enhance"`
	Skill    SkillConfig    `yaml:"skill"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProviderConfig selects and tunes the LLM backend used by stages that
// call out to a provider (classification defaults, Stage 4, Stage 6).
type ProviderConfig struct {
	// Engine is one of "claude-cli", "codex-cli", "gemini", "anthropic", "glm".
	Engine          string  `yaml:"engine"`
	Model           string  `yaml:"model,omitempty"`
	Temperature     float64 `yaml:"temperature,omitempty"`
	MaxOutputTokens int     `yaml:"max_output_tokens,omitempty"`
	EnableThinking  bool    `yaml:"enable_thinking,omitempty"`
}

// CacheConfig configures the content-addressed artifact cache.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// ExtractConfig configures Stage 1.
type ExtractConfig struct {
	MaxPages int `yaml:"max_pages,omitempty"` // 0 = no cap
}

// ChunkConfig configures Stage 3.
type ChunkConfig struct {
	MinChunkChars int `yaml:"min_chunk_chars"`
	PagesPerChunk int `yaml:"pages_per_chunk"` // used when no chapter boundaries are found
}

// EnhanceConfig configures Stage 4.
type EnhanceConfig struct {
	Workers            int           `yaml:"workers"`
	Resume             bool          `yaml:"resume"`
	RetryFailed        bool          `yaml:"retry_failed"`
	MinOutputChars     int           `yaml:"min_output_chars"`
	WorkerStartupGrace time.Duration `yaml:"worker_startup_grace,omitempty"`
}

// SkillConfig configures Stages 5 and 6.
type SkillConfig struct {
	EnhanceSkill       bool `yaml:"enhance_skill"`
	MaxReferenceFiles  int  `yaml:"max_reference_files"`
	MaxCharsPerFile    int  `yaml:"max_chars_per_file"`
	MaxTotalChars      int  `yaml:"max_total_chars"`
}

// LoggingConfig configures the category logger (internal/logging).
type LoggingConfig struct {
	Debug  bool   `yaml:"debug"`
	JSON   bool   `yaml:"json"`
	Level  string `yaml:"level"`
}

// DefaultConfig returns the pipeline's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Engine: "gemini",
		},
		Cache: CacheConfig{
			Dir: ".craskill/cache",
		},
		Extract: ExtractConfig{
			MaxPages: 0,
		},
		Chunk: ChunkConfig{
			MinChunkChars: 500,
			PagesPerChunk: 5,
		},
		Enhance: EnhanceConfig{
			Workers:        4,
			MinOutputChars: 50,
		},
		Skill: SkillConfig{
			EnhanceSkill:      true,
			MaxReferenceFiles: 8,
			MaxCharsPerFile:   15000,
			MaxTotalChars:     50000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file/defaults for
// the handful of settings an operator is likely to override per-invocation,
// mirroring the teacher's config-file-then-env-var precedence in
// client_factory.go's DetectProvider.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CRASKILL_ENGINE"); v != "" {
		cfg.Provider.Engine = v
	}
	if v := os.Getenv("CRASKILL_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("CRASKILL_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
}
