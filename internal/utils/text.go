package utils

import (
	"math"
	"strings"
)

func CountWords(text string) int {
	return len(strings.Fields(text))
}

func EstimateTokensFromWords(wordCount int) int {
	return int(math.Round(float64(wordCount) * 1.3))
}

// EstimateTokens gives a rough token count for a batch of texts.
func EstimateTokens(texts []string) int {
	words := 0
	for _, t := range texts {
		words += CountWords(t)
	}
	return EstimateTokensFromWords(words)
}

// Preview shortens s to at most maxLength runes for log output.
func Preview(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	return string(runes[:maxLength]) + "..."
}
