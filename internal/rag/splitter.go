package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Splitter cuts documents into chunks of at most ChunkSize characters,
// keeping sentences whole when they fit. Consecutive chunks share up to
// Overlap characters of trailing sentences.
type Splitter struct {
	ChunkSize int // default: 1000
	Overlap   int // default: 100
}

func (s Splitter) withDefaults() Splitter {
	if s.ChunkSize <= 0 {
		s.ChunkSize = 1000
	}
	if s.Overlap < 0 || s.Overlap >= s.ChunkSize {
		s.Overlap = 0
	}
	return s
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// Split returns the chunks of text, without empty or repeated chunks.
func (s Splitter) Split(text string) []string {
	s = s.withDefaults()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if runeLen(text) <= s.ChunkSize {
		return []string{strings.TrimSpace(text)}
	}

	var pieces []string
	for _, sentence := range splitSentences(text) {
		pieces = append(pieces, hardSplit(sentence, s.ChunkSize)...)
	}

	var (
		chunks  []string
		current []string
		size    int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if size+n > s.ChunkSize && size > 0 {
			chunks = append(chunks, strings.TrimSpace(strings.Join(current, "")))

			// Carry the trailing sentences that fit in the overlap.
			keep, kept := len(current), 0
			for i := len(current) - 1; i >= 0; i-- {
				l := runeLen(current[i])
				if kept+l > s.Overlap || kept+l+n > s.ChunkSize {
					break
				}
				kept += l
				keep = i
			}
			current, size = append([]string(nil), current[keep:]...), kept
		}
		current = append(current, piece)
		size += n
	}
	if size > 0 {
		chunks = append(chunks, strings.TrimSpace(strings.Join(current, "")))
	}
	return dedupe(chunks)
}

// splitSentences cuts after '.', '!' or '?' followed by whitespace. The
// whitespace stays with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if r := runes[i]; r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 && j < len(runes) && runes[i] != '\n' {
			continue
		}
		sentences = append(sentences, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

// hardSplit cuts s into pieces of at most size runes, at whitespace when
// possible.
func hardSplit(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > size {
		cut := size
		for i := size; i > size/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func dedupe(chunks []string) []string {
	seen := make(map[string]bool, len(chunks))
	out := chunks[:0]
	for _, c := range chunks {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
