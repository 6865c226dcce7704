package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeModelName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		wantMatch bool
	}{
		{"exact match", "gpt-4o", "gpt-4o", true},
		{"uppercase", "GPT-4O", "gpt-4o", true},
		{"surrounding whitespace", "  claude-3-5-sonnet  ", "claude-3-5-sonnet", true},
		{"provider prefix stripped", "together/llama-3.1-70b", "llama-3.1-70b", true},
		{"stem match with suffix", "mixtral-8x7b-something", "mixtral-8x7b-instruct", true},
		{"versioned suffix", "claude-3-5-sonnet-20241022", "claude-3-5-sonnet", true},
		{"longest stem wins", "gpt-4o-mini-2024", "gpt-4o-mini", true},
		{"phi variant", "phi3-medium-4k", "phi3-medium-instruct", true},
		{"unknown model", "totally-unknown-model", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeModelName(tt.input)
			assert.Equal(t, tt.wantMatch, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeEmbeddingModelName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		wantMatch bool
	}{
		{"exact match", "text-embedding-3-large", "text-embedding-3-large", true},
		{"uppercase", "ALL-MPNET-BASE-V2", "all-mpnet-base-v2", true},
		{"provider prefix", "openai/text-embedding-3-small", "text-embedding-3-small", true},
		{"chat model is not an embedder", "gpt-4o", "", false},
		{"unknown", "fancy-embedder-9000", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeEmbeddingModelName(tt.input)
			assert.Equal(t, tt.wantMatch, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeAnyModelName(t *testing.T) {
	got, ok := NormalizeAnyModelName("bge-large-en-v1.5")
	assert.True(t, ok)
	assert.Equal(t, "bge-large-en-v1.5", got)

	got, ok = NormalizeAnyModelName("anthropic/claude-3-opus-latest")
	assert.True(t, ok)
	assert.Equal(t, "claude-3-opus", got)

	_, ok = NormalizeAnyModelName("no-such-model")
	assert.False(t, ok)
}
