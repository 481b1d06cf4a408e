// Package relevance picks the sentences of a document that share keywords
// with a question, to ground a prompt without sending the whole text.
package relevance

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMaxSentences = 5
	DefaultMaxChars     = 2000

	minSentenceLength = 20
	minKeywordLength  = 3
)

var stopwords = map[string]struct{}{
	"what":   {},
	"when":   {},
	"where":  {},
	"how":    {},
	"why":    {},
	"does":   {},
	"will":   {},
	"can":    {},
	"should": {},
}

// Select returns up to maxSentences sentences of text containing at least one
// keyword of question, joined by ". " and cut to maxChars runes. The result is
// empty when nothing matches. Select is pure.
func Select(question, text string, maxSentences, maxChars int) string {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	keywords := Keywords(question)
	if len(keywords) == 0 {
		return ""
	}

	var matches []string
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches = append(matches, sentence)
				break
			}
		}
		if len(matches) == maxSentences {
			break
		}
	}

	return truncateRunes(strings.Join(matches, ". "), maxChars)
}

// Keywords lowercases question and keeps the words longer than three
// characters that are not question starters. Surrounding punctuation is
// stripped so "termination?" matches "termination".
func Keywords(question string) []string {
	var out []string
	for _, field := range strings.Fields(strings.ToLower(question)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if utf8.RuneCountInString(word) <= minKeywordLength {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		out = append(out, word)
	}
	return out
}

func splitSentences(text string) []string {
	units := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := units[:0]
	for _, u := range units {
		u = strings.TrimSpace(u)
		if utf8.RuneCountInString(u) > minSentenceLength {
			out = append(out, u)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
