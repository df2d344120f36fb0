// Package text normalizes sentences before intent classification. The same
// Processor output is used for training sentences and incoming messages.
package text

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// stemmerLanguages maps ISO 639-1 codes to the snowball algorithm names
// available. Languages not listed are tokenized but not stemmed.
var stemmerLanguages = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"nb": "norwegian",
	"hu": "hungarian",
}

// englishClitics are split off English words the way the Penn Treebank does.
var englishClitics = []string{"n't", "'s", "'re", "'ve", "'ll", "'d", "'m"}

// Processor turns raw text into its normalized form.
type Processor struct {
	language string
	stem     bool
	algo     string
}

// New returns a processor for language. Stemming happens only when
// preProcessing is set and snowball has an algorithm for the language.
func New(language string, preProcessing bool) *Processor {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = "en"
	}
	algo, ok := stemmerLanguages[language]
	return &Processor{language: language, stem: preProcessing && ok, algo: algo}
}

// Language returns the ISO 639-1 code of the processor.
func (p *Processor) Language() string { return p.language }

// Stems reports whether the processor stems tokens.
func (p *Processor) Stems() bool { return p.stem }

// Process replaces underscores with spaces, tokenizes, stems every token that
// is not fully upper case, and joins the tokens with single spaces.
func (p *Processor) Process(s string) string {
	tokens := Tokenize(strings.ReplaceAll(s, "_", " "), p.language)
	if p.stem {
		for i, tok := range tokens {
			if IsUpper(tok) {
				continue
			}
			if stemmed, err := snowball.Stem(tok, p.algo, false); err == nil && stemmed != "" {
				tokens[i] = stemmed
			}
		}
	}
	return strings.Join(tokens, " ")
}

// IsUpper reports whether s has at least one cased letter and no lower case
// letter.
func IsUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
