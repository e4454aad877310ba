package store

import (
	"strings"
	"unicode"
)

// TokenizeCode lowercases and splits text into search terms using
// identifier-aware boundaries. "NewConnectionPool" and
// "new_connection_pool" both yield [new connection pool], so a query
// written in one convention matches documents written in the other.
// Single-rune tokens are dropped; loop variables and operators carry
// no retrieval signal.
func TokenizeCode(text string) []string {
	var tokens []string
	for _, word := range strings.FieldsFunc(text, isTokenSeparator) {
		for _, sub := range SplitCodeToken(word) {
			sub = strings.ToLower(sub)
			if len(sub) >= 2 {
				tokens = append(tokens, sub)
			}
		}
	}
	return tokens
}

// isTokenSeparator reports runes that end a raw token. Underscores stay
// inside the token so snake_case splitting happens in one place,
// SplitCodeToken.
func isTokenSeparator(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return false
	}
	return true
}

// SplitCodeToken breaks one identifier into words: snake_case segments
// first, then camelCase within each segment, so mixed forms like
// "max_RetryCount" still split fully.
func SplitCodeToken(token string) []string {
	if !strings.ContainsRune(token, '_') {
		return SplitCamelCase(token)
	}

	var words []string
	for _, segment := range strings.FieldsFunc(token, func(r rune) bool { return r == '_' }) {
		words = append(words, SplitCamelCase(segment)...)
	}
	return words
}

// SplitCamelCase splits camelCase and PascalCase words, keeping
// acronyms intact: a word starts at an uppercase rune that follows a
// lowercase rune ("getUser" -> get User) or that begins the lowercase
// tail of an acronym run ("HTTPHandler" -> HTTP Handler).
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	runes := []rune(s)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		afterLower := unicode.IsLower(runes[i-1])
		beforeLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if afterLower || beforeLower {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}

// FilterStopWords drops tokens found in the stop word set.
// Matching is case-insensitive.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopWords[strings.ToLower(tok)]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

// BuildStopWordMap builds a lowercased lookup set from a word list.
func BuildStopWordMap(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
