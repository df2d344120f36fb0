package types

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// FindWord returns the byte span of the first case-insensitive occurrence of
// frag in sentence that is not glued to surrounding word characters. A side of
// frag that starts or ends with a non-word character (e.g. "-5") has no
// boundary requirement on that side. It returns -1, -1 when there is none.
func FindWord(sentence, frag string) (int, int) {
	if frag == "" {
		return -1, -1
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(frag))
	if err != nil {
		return -1, -1
	}
	first, _ := utf8.DecodeRuneInString(frag)
	last, _ := utf8.DecodeLastRuneInString(frag)
	for _, loc := range re.FindAllStringIndex(sentence, -1) {
		if isWordRune(first) && loc[0] > 0 {
			prev, _ := utf8.DecodeLastRuneInString(sentence[:loc[0]])
			if isWordRune(prev) {
				continue
			}
		}
		if isWordRune(last) && loc[1] < len(sentence) {
			next, _ := utf8.DecodeRuneInString(sentence[loc[1]:])
			if isWordRune(next) {
				continue
			}
		}
		return loc[0], loc[1]
	}
	return -1, -1
}

// ContainsWord reports whether frag appears in sentence as a whole word.
func ContainsWord(sentence, frag string) bool {
	start, _ := FindWord(sentence, frag)
	return start >= 0
}

// ReplaceWord replaces the first whole-word occurrence of frag in sentence.
func ReplaceWord(sentence, frag, repl string) string {
	start, end := FindWord(sentence, frag)
	if start < 0 {
		return sentence
	}
	return sentence[:start] + repl + sentence[end:]
}
