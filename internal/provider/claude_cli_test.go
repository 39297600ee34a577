package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"craskill/internal/config"
)

func TestClaudeCLIDefaultsModel(t *testing.T) {
	c := newClaudeCLIClient(config.ProviderConfig{})
	assert.Equal(t, "sonnet", c.model)
	assert.Equal(t, ClaudeCLI, c.ID())
}

func TestClaudeCLITimeoutTiers(t *testing.T) {
	c := newClaudeCLIClient(config.ProviderConfig{})
	assert.Equal(t, 120*time.Second, c.Timeout(100))
	assert.Equal(t, 180*time.Second, c.Timeout(9000))
	assert.Equal(t, 300*time.Second, c.Timeout(21000))
}

func TestClaudeCLIHonorsModelOverride(t *testing.T) {
	c := newClaudeCLIClient(config.ProviderConfig{Model: "opus"})
	assert.Equal(t, "opus", c.model)
}
