package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"craskill/internal/config"
)

func TestAnthropicDefaultModel(t *testing.T) {
	c := newAnthropicClient(config.ProviderConfig{}, "sk-test")
	assert.Equal(t, "claude-sonnet-4-5-20250514", c.model)
	assert.Equal(t, 8192, c.maxTokens)
}

func TestAnthropicTimeoutTiers(t *testing.T) {
	c := newAnthropicClient(config.ProviderConfig{}, "sk-test")
	assert.Equal(t, 2*time.Minute, c.Timeout(500))
	assert.Equal(t, 4*time.Minute, c.Timeout(15000))
	assert.Equal(t, 8*time.Minute, c.Timeout(60000))
}
