package retrieval

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"use": {}, "with": {}, "self": {}, "none": {}, "def": {}, "class": {}, "return": {},
}

// Tokenize splits text into lowercase index terms. CamelCase and snake_case
// identifiers are split into their parts and also kept whole.
func Tokenize(text string) []string {
	var terms []string
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		parts := splitIdentifier(word)
		if len(parts) > 1 {
			terms = appendTerm(terms, word)
		}
		for _, p := range parts {
			terms = appendTerm(terms, p)
		}
	}
	return terms
}

func appendTerm(terms []string, word string) []string {
	w := strings.ToLower(strings.Trim(word, "_"))
	if len(w) < 2 {
		return terms
	}
	if _, stop := stopwords[w]; stop {
		return terms
	}
	return append(terms, w)
}

// splitIdentifier splits on underscores and lower-to-upper case changes
func splitIdentifier(word string) []string {
	var parts []string
	for _, piece := range strings.Split(word, "_") {
		runes := []rune(piece)
		start := 0
		for i := 1; i < len(runes); i++ {
			if unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i-1]) {
				parts = append(parts, string(runes[start:i]))
				start = i
			}
		}
		if start < len(runes) {
			parts = append(parts, string(runes[start:]))
		}
	}
	return parts
}

// TermFrequencies counts the terms of text
func TermFrequencies(text string) (map[string]int, int) {
	terms := Tokenize(text)
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return tf, len(terms)
}

// QueryTerms returns the distinct terms of a query
func QueryTerms(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range Tokenize(query) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
