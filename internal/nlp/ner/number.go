package ner

import (
	"regexp"
	"strings"
)

// Signed integers and decimals with a point or comma separator.
var numberRe = regexp.MustCompile(`(\b|[-+])\d+\.?\d*([.,]\d+)?\b`)

// NumberParser finds the first number in a sentence.
type NumberParser struct {
	language string
}

// NewNumberParser creates a parser that also understands spelled-out
// numbers in English, Spanish and Catalan.
func NewNumberParser(language string) *NumberParser {
	return &NumberParser{language: language}
}

// Find returns the sentence with spelled-out numbers converted and the first
// number normalized in place ("," becomes ".", a leading "+" is dropped),
// together with that normalized number.
func (p *NumberParser) Find(sentence string) (string, string, bool) {
	sentence = wordsToDigits(sentence, p.language)
	loc := numberRe.FindStringIndex(sentence)
	if loc == nil {
		return "", "", false
	}
	frag := sentence[loc[0]:loc[1]]
	formatted := strings.ReplaceAll(strings.ReplaceAll(frag, ",", "."), "+", "")
	return sentence[:loc[0]] + formatted + sentence[loc[1]:], formatted, true
}
