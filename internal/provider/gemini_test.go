package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"craskill/internal/config"
)

func TestGeminiDefaults(t *testing.T) {
	c := newGeminiClient(config.ProviderConfig{}, "key")
	assert.Equal(t, "gemini-3-flash-preview", c.model)
	assert.Equal(t, int32(65536), c.maxOutputTokens)
	assert.InDelta(t, 0.2, c.temperature, 0.001)
}

func TestGeminiTimeoutTiers(t *testing.T) {
	c := newGeminiClient(config.ProviderConfig{}, "key")
	assert.Equal(t, 2*time.Minute, c.Timeout(1000))
	assert.Equal(t, 5*time.Minute, c.Timeout(30000))
	assert.Equal(t, 10*time.Minute, c.Timeout(200000))
}
