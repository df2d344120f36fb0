package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Tokenize splits s into word, number and punctuation tokens. Hyphens and
// apostrophes between letters stay inside the word, decimal separators
// between digits stay inside the number. For English the usual clitics
// ("n't", "'s", "'ll", ...) become separate tokens.
func Tokenize(s, language string) []string {
	runes := []rune(s)
	var tokens []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, splitClitics(string(cur), language)...)
			cur = cur[:0]
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush()
		case isWordRune(r):
			cur = append(cur, r)
		case isJoiner(runes, i, len(cur) > 0):
			cur = append(cur, r)
		case (r == '-' || r == '+') && len(cur) == 0 && i+1 < len(runes) && unicode.IsDigit(runes[i+1]):
			// Signed number.
			cur = append(cur, r)
		default:
			flush()
			tokens = append(tokens, string(r))
		}
	}
	flush()
	return tokens
}

// isJoiner reports whether the punctuation at i glues the runes around it
// into a single token.
func isJoiner(runes []rune, i int, inToken bool) bool {
	if !inToken || i+1 >= len(runes) {
		return false
	}
	prev, next := runes[i-1], runes[i+1]
	switch runes[i] {
	case '.', ',':
		return unicode.IsDigit(prev) && unicode.IsDigit(next)
	case '-', '\'', '’':
		return isWordRune(prev) && isWordRune(next)
	}
	return false
}

func splitClitics(word, language string) []string {
	if language != "en" {
		return []string{word}
	}
	// Compared rune by rune so that the cut never falls inside a multi-byte
	// apostrophe or letter.
	runes := []rune(word)
	folded := make([]rune, len(runes))
	for i, r := range runes {
		if r == '’' {
			r = '\''
		}
		folded[i] = unicode.ToLower(r)
	}
	lower := string(folded)
	for _, c := range englishClitics {
		if strings.HasSuffix(lower, c) && len(folded) > utf8.RuneCountInString(c) {
			cut := len(runes) - utf8.RuneCountInString(c)
			return []string{string(runes[:cut]), string(runes[cut:])}
		}
	}
	return []string{word}
}
