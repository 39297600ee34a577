package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craskill/internal/config"
)

func TestParseCodexNDJSONPrefersMessageStop(t *testing.T) {
	stream := `{"type":"content_block_delta","delta":{"type":"text_delta","text":"partial "}}
{"type":"message_stop","message":{"content":[{"type":"text","text":"final answer"}]}}
`
	out, err := parseCodexNDJSON([]byte(stream), CodexCLI)
	require.NoError(t, err)
	assert.Equal(t, "final answer", out)
}

func TestParseCodexNDJSONFallsBackToDeltas(t *testing.T) {
	stream := `{"type":"content_block_delta","delta":{"type":"text_delta","text":"streamed"}}
`
	out, err := parseCodexNDJSON([]byte(stream), CodexCLI)
	require.NoError(t, err)
	assert.Equal(t, "streamed", out)
}

func TestParseCodexNDJSONErrorEvent(t *testing.T) {
	stream := `{"type":"error","error":{"type":"api_error","message":"boom"}}
`
	_, err := parseCodexNDJSON([]byte(stream), CodexCLI)
	require.Error(t, err)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, APIError, pErr.Kind)
}

func TestParseCodexNDJSONEmptyIsInvalidResponse(t *testing.T) {
	_, err := parseCodexNDJSON(nil, CodexCLI)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, InvalidResponse, pErr.Kind)
}

func TestCodexTimeoutTiers(t *testing.T) {
	c := newCodexCLIClient(config.ProviderConfig{})
	assert.Equal(t, 150*time.Second, c.Timeout(1000))
	assert.Equal(t, 300*time.Second, c.Timeout(25000))
}
