package scoring

import (
	"sort"
	"strings"
)

// Canonical model names the external leaderboards report. Production
// callers send provider-qualified or version-suffixed variants, so lookup
// is case-insensitive with longest-stem prefix matching as the fallback.
var chatModelAliases = map[string]string{
	"gpt-4o":            "gpt-4o",
	"gpt-4o-mini":       "gpt-4o-mini",
	"claude-3-5-sonnet": "claude-3-5-sonnet",
	"claude-3-opus":     "claude-3-opus",
	"claude-3-haiku":    "claude-3-haiku",
	"llama-3.1-70b":     "llama-3.1-70b",
	"llama-3.1-8b":      "llama-3.1-8b",
	"mixtral-8x7b":      "mixtral-8x7b-instruct",
	"phi3-medium":       "phi3-medium-instruct",
	"gemini-1.5-pro":    "gemini-1.5-pro",
}

var embeddingModelAliases = map[string]string{
	"text-embedding-3-large": "text-embedding-3-large",
	"text-embedding-3-small": "text-embedding-3-small",
	"text-embedding-ada-002": "text-embedding-ada-002",
	"all-mpnet-base-v2":      "all-mpnet-base-v2",
	"all-minilm-l6-v2":       "all-minilm-l6-v2",
	"bge-large-en-v1.5":      "bge-large-en-v1.5",
	"e5-large-v2":            "e5-large-v2",
	"instructor-xl":          "instructor-xl",
}

// NormalizeModelName resolves a caller-supplied chat/reasoning model name
// to its canonical leaderboard entry. Returns false when nothing matches.
func NormalizeModelName(name string) (string, bool) {
	return normalize(name, chatModelAliases)
}

// NormalizeEmbeddingModelName resolves embedding model names against the
// MTEB alias table.
func NormalizeEmbeddingModelName(name string) (string, bool) {
	return normalize(name, embeddingModelAliases)
}

// NormalizeAnyModelName tries the chat table first, then embeddings.
func NormalizeAnyModelName(name string) (string, bool) {
	if canonical, ok := NormalizeModelName(name); ok {
		return canonical, true
	}
	return NormalizeEmbeddingModelName(name)
}

func normalize(name string, aliases map[string]string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", false
	}

	// Provider prefixes like "together/llama-3.1-70b" carry no signal.
	if idx := strings.LastIndex(lower, "/"); idx >= 0 {
		lower = lower[idx+1:]
	}

	if canonical, ok := aliases[lower]; ok {
		return canonical, true
	}

	// Longest stem wins so "gpt-4o-mini-2024" never resolves to "gpt-4o".
	stems := make([]string, 0, len(aliases))
	for stem := range aliases {
		stems = append(stems, stem)
	}
	sort.Slice(stems, func(i, j int) bool { return len(stems[i]) > len(stems[j]) })

	for _, stem := range stems {
		if strings.HasPrefix(lower, stem) {
			return aliases[stem], true
		}
	}

	return "", false
}
