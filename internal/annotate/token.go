package annotate

import (
	"strings"

	"bookgloss/internal/llm"
)

// EstimateTokens gives a rough token count using a words-based heuristic.
// Exact tokenization is not required for context budgeting.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per word for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// contextTokens sums the estimated token count of accumulated turns.
func contextTokens(turns []llm.Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTokens(t.Text)
	}
	return total
}
