package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldSearchTerm lower-cases the input and strips diacritics so that
// "Café" and "cafe" index and match identically.
func FoldSearchTerm(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	folded, _, err := transform.String(foldTransformer, value)
	if err != nil {
		folded = value
	}
	return strings.ToLower(folded)
}

// SearchTokens splits the value into folded whitespace-separated tokens,
// dropping duplicates while preserving order.
func SearchTokens(value string) []string {
	folded := FoldSearchTerm(value)
	if folded == "" {
		return nil
	}

	fields := strings.Fields(folded)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		tokens = append(tokens, field)
	}
	return tokens
}
