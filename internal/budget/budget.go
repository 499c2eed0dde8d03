// Package budget provides token budget estimation and context trimming for
// prompt assembly. Because generation supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/terracoder/internal/retrieval"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default budget for retrieved snippets
	// appended to a prompt. Conservative enough to fit within 8k-context
	// models while leaving room for the generated files. Override via
	// CONTEXT_MAX_TOKENS.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimSnippets drops retrieved snippets lowest-score-first until the
// estimated token count of the survivors fits within maxTokens, preserving
// the relative order of what remains. Each snippet is charged for its
// content, its source line, and a small formatting overhead. A maxTokens
// of zero or less falls back to DefaultMaxContextTokens.
func TrimSnippets(snippets []retrieval.Snippet, maxTokens int) []retrieval.Snippet {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	if len(snippets) == 0 {
		return snippets
	}

	kept := make([]retrieval.Snippet, len(snippets))
	copy(kept, snippets)

	// topK is small, so repeated linear scans for the lowest score are
	// clear and correct.
	for len(kept) > 0 {
		total := 0
		for _, s := range kept {
			total += 4
			total += Estimate(s.Content)
			total += Estimate(s.Source)
		}
		if total <= maxTokens {
			break
		}

		lowest := 0
		for i, s := range kept {
			if s.Score < kept[lowest].Score {
				lowest = i
			}
		}
		kept = append(kept[:lowest], kept[lowest+1:]...)
	}
	return kept
}
