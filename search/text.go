package search

import (
	"strings"
	"unicode"
)

// tokenize splits text on whitespace and punctuation, lowercases, and drops
// single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.ToLower(field)
		if len(token) <= 1 {
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens
}

// termFrequencies counts token occurrences in text.
func termFrequencies(text string) map[string]int {
	tokens := tokenize(text)
	freqs := make(map[string]int, len(tokens))
	for _, token := range tokens {
		freqs[token]++
	}
	return freqs
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
