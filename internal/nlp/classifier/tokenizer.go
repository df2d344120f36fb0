package classifier

import (
	"sort"
	"strings"
)

// tokenizerFilters are the characters removed before splitting, as the
// Keras Tokenizer does.
const tokenizerFilters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

const (
	padIndex = 0
	oovIndex = 1
)

// tokenizer maps words to indexes by decreasing frequency. Index 0 is
// padding and index 1 is the out-of-vocabulary token.
type tokenizer struct {
	numWords  int
	lower     bool
	wordIndex map[string]int
}

func newTokenizer(numWords int, lower bool) *tokenizer {
	return &tokenizer{numWords: numWords, lower: lower, wordIndex: map[string]int{}}
}

func (t *tokenizer) words(s string) []string {
	if t.lower {
		s = strings.ToLower(s)
	}
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(tokenizerFilters, r) {
			return ' '
		}
		return r
	}, s)
	return strings.Fields(s)
}

// fit builds the word index. Ties in frequency keep first-seen order.
func (t *tokenizer) fit(texts []string) {
	counts := map[string]int{}
	var order []string
	for _, text := range texts {
		for _, w := range t.words(text) {
			if _, ok := counts[w]; !ok {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	t.wordIndex = make(map[string]int, len(order))
	for i, w := range order {
		t.wordIndex[w] = i + 2
	}
}

// sequence converts text to word indexes. Unknown words and words beyond
// numWords map to oovIndex.
func (t *tokenizer) sequence(text string) []int {
	words := t.words(text)
	seq := make([]int, 0, len(words))
	for _, w := range words {
		i, ok := t.wordIndex[w]
		if !ok || (t.numWords > 0 && i >= t.numWords) {
			i = oovIndex
		}
		seq = append(seq, i)
	}
	return seq
}

// pad truncates or right-pads seq with padIndex to length n.
func pad(seq []int, n int) []int {
	out := make([]int, n)
	copy(out, seq)
	return out
}

func allOOV(seq []int) bool {
	for _, i := range seq {
		if i != oovIndex {
			return false
		}
	}
	return true
}

func equalSeq(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
