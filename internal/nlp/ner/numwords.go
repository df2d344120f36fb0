package ner

import (
	"regexp"
	"strconv"
	"strings"
)

// lexicon holds the number words of a language.
type lexicon struct {
	units       map[string]int  // 0..99 (and 200..900 for languages with one word hundreds)
	multipliers map[string]int  // hundred, thousand, million
	joiners     map[string]bool // words allowed between number words
	articles    map[string]bool // never converted when alone
}

var lexicons = map[string]*lexicon{
	"en": {
		units: map[string]int{
			"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
			"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
			"thirteen": 13, "fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
			"eighteen": 18, "nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40,
			"fifty": 50, "sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
		},
		multipliers: map[string]int{"hundred": 100, "thousand": 1000, "million": 1000000},
		joiners:     map[string]bool{"and": true},
		articles:    map[string]bool{"a": true, "an": true},
	},
	"es": {
		units: map[string]int{
			"cero": 0, "uno": 1, "un": 1, "una": 1, "dos": 2, "tres": 3, "cuatro": 4,
			"cinco": 5, "seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
			"once": 11, "doce": 12, "trece": 13, "catorce": 14, "quince": 15,
			"dieciséis": 16, "dieciseis": 16, "diecisiete": 17, "dieciocho": 18,
			"diecinueve": 19, "veinte": 20, "veintiuno": 21, "veintiún": 21, "veintiuna": 21,
			"veintidós": 22, "veintidos": 22, "veintitrés": 23, "veintitres": 23,
			"veinticuatro": 24, "veinticinco": 25, "veintiséis": 26, "veintiseis": 26,
			"veintisiete": 27, "veintiocho": 28, "veintinueve": 29, "treinta": 30,
			"cuarenta": 40, "cincuenta": 50, "sesenta": 60, "setenta": 70, "ochenta": 80,
			"noventa": 90, "ciento": 100, "cien": 100, "doscientos": 200, "doscientas": 200,
			"trescientos": 300, "trescientas": 300, "cuatrocientos": 400, "cuatrocientas": 400,
			"quinientos": 500, "quinientas": 500, "seiscientos": 600, "seiscientas": 600,
			"setecientos": 700, "setecientas": 700, "ochocientos": 800, "ochocientas": 800,
			"novecientos": 900, "novecientas": 900,
		},
		multipliers: map[string]int{"mil": 1000, "millón": 1000000, "millon": 1000000, "millones": 1000000},
		joiners:     map[string]bool{"y": true},
		articles:    map[string]bool{"un": true, "una": true},
	},
	"ca": {
		units: map[string]int{
			"zero": 0, "u": 1, "un": 1, "una": 1, "dos": 2, "dues": 2, "tres": 3, "quatre": 4,
			"cinc": 5, "sis": 6, "set": 7, "vuit": 8, "nou": 9, "deu": 10, "onze": 11,
			"dotze": 12, "tretze": 13, "catorze": 14, "quinze": 15, "setze": 16,
			"disset": 17, "divuit": 18, "dinou": 19, "vint": 20, "trenta": 30,
			"quaranta": 40, "cinquanta": 50, "seixanta": 60, "setanta": 70, "vuitanta": 80,
			"noranta": 90, "cent": 100, "cents": 100,
		},
		multipliers: map[string]int{"mil": 1000, "milió": 1000000, "milio": 1000000, "milions": 1000000},
		joiners:     map[string]bool{"i": true},
		articles:    map[string]bool{"un": true, "una": true},
	},
}

// wordRe finds words, keeping hyphenated compounds ("twenty-one",
// "vint-i-u", "dos-cents") together.
var wordRe = regexp.MustCompile(`\p{L}+(?:-\p{L}+)*`)

type span struct {
	start, end int
	word       string
}

// wordValue returns the numeric value of a single (possibly hyphenated)
// word, or false.
func (l *lexicon) wordValue(word string) (int, bool) {
	word = strings.ToLower(word)
	if v, ok := l.units[word]; ok {
		return v, true
	}
	if !strings.Contains(word, "-") {
		return 0, false
	}
	// "twenty-one", "vint-i-u", "dos-cents"
	total := 0
	for _, part := range strings.Split(word, "-") {
		if l.joiners[part] {
			continue
		}
		v, ok := l.units[part]
		if !ok {
			return 0, false
		}
		if v == 100 && total > 0 {
			total *= 100
			continue
		}
		total += v
	}
	return total, true
}

// accumulator builds a number from its words.
type accumulator struct {
	total, current int
	words          int
}

// add returns false when word cannot continue the current number, as in
// "one two".
func (a *accumulator) add(l *lexicon, word string) bool {
	lw := strings.ToLower(word)
	if m, ok := l.multipliers[lw]; ok {
		if a.current == 0 {
			a.current = 1
		}
		if m == 100 {
			a.current *= 100
		} else {
			a.total += a.current * m
			a.current = 0
		}
		a.words++
		return true
	}
	v, ok := l.wordValue(lw)
	if !ok {
		return false
	}
	if v == 100 {
		// Single word hundreds in languages like Catalan: "cent".
		if a.current == 0 {
			a.current = 1
		}
		if a.current >= 100 {
			return false
		}
		a.current *= 100
		a.words++
		return true
	}
	if a.words > 0 && !canFollow(a.current, v) {
		return false
	}
	a.current += v
	a.words++
	return true
}

func canFollow(current, v int) bool {
	rest := current % 100
	switch {
	case v >= 100:
		return current%1000 == 0
	case v >= 10:
		return rest == 0
	default:
		return rest == 0 || (rest >= 20 && rest%10 == 0)
	}
}

func (a *accumulator) value() int { return a.total + a.current }

// wordsToDigits replaces spelled-out numbers with digits: "twenty one" with
// "21", "treinta y dos" with "32". Lone articles ("a", "un") are kept.
func wordsToDigits(sentence, language string) string {
	l, ok := lexicons[language]
	if !ok {
		return sentence
	}
	var words []span
	for _, loc := range wordRe.FindAllStringIndex(sentence, -1) {
		words = append(words, span{loc[0], loc[1], sentence[loc[0]:loc[1]]})
	}

	var sb strings.Builder
	last := 0
	for i := 0; i < len(words); {
		acc := &accumulator{}
		if !acc.add(l, words[i].word) {
			i++
			continue
		}
		j := i + 1
		end := words[i].end
		for j < len(words) && onlySpaces(sentence[end:words[j].start]) {
			w := strings.ToLower(words[j].word)
			if l.joiners[w] && j+1 < len(words) && onlySpaces(sentence[words[j].end:words[j+1].start]) {
				trial := *acc
				if trial.add(l, words[j+1].word) {
					*acc = trial
					end = words[j+1].end
					j += 2
					continue
				}
				break
			}
			if !acc.add(l, words[j].word) {
				break
			}
			end = words[j].end
			j++
		}
		if acc.words == 1 && l.articles[strings.ToLower(words[i].word)] {
			i++
			continue
		}
		sb.WriteString(sentence[last:words[i].start])
		sb.WriteString(strconv.Itoa(acc.value()))
		last = end
		i = j
	}
	sb.WriteString(sentence[last:])
	return sb.String()
}

func onlySpaces(s string) bool {
	return strings.TrimSpace(s) == "" && s != ""
}
