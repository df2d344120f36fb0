package ner

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
)

// isoLayout matches the offset style "+02:00" also for UTC.
const isoLayout = "2006-01-02T15:04:05-07:00"

// Anchors used to tell which fields an absolute expression states: a field
// that comes out equal when parsed against both is given by the text.
var (
	anchor1 = time.Date(2001, 1, 1, 1, 1, 1, 0, time.UTC)
	anchor2 = time.Date(2002, 2, 2, 2, 2, 2, 0, time.UTC)
)

// Relative unit words by language, most precise first.
var unitWords = map[string][6][]string{
	// second, minute, hour, day, month, year
	"en": {
		{"second", "seconds"}, {"minute", "minutes"}, {"hour", "hours"},
		{"day", "days"}, {"month", "months"}, {"year", "years"},
	},
	"es": {
		{"segundo", "segundos"}, {"minuto", "minutos"}, {"hora", "horas"},
		{"día", "dia", "días", "dias"}, {"mes", "meses"}, {"año", "años"},
	},
	"ca": {
		{"segon", "segons"}, {"minut", "minuts"}, {"hora", "hores"},
		{"dia", "dies"}, {"mes", "mesos"}, {"any", "anys"},
	},
}

// Words that are retried with a placeholder when no date-time is found,
// since they glue two expressions into one the parsers reject.
var conjunctions = map[string][2]string{
	"en": {" and ", " annd "},
	"es": {" y ", " yy "},
	"ca": {" i ", " ii "},
}

var enRelativeCues = []string{
	"now", "today", "tonight", "tomorrow", "tmr", "yesterday", "ago", "next", "last",
	"this", "within", "in", "monday", "tuesday", "wednesday", "thursday", "friday",
	"saturday", "sunday",
}

// DateTimeResult is a date-time found in a sentence.
type DateTimeResult struct {
	// Sentence with the fragment replaced by Value.
	Sentence string
	// ISO-8601 date-time with offset.
	Value string
	// year, month, day, hour, minute, second flags telling which fields the
	// text stated, plus "frag" with the matched text.
	Info map[string]any
}

// DateTimeParser finds date-time expressions. Relative expressions ("tomorrow
// at 3pm", "in 2 hours", "hace 3 días") are tried first, then absolute ones
// ("03/04/2024", "March 3rd", "15:30").
type DateTimeParser struct {
	language string
	loc      *time.Location
	when     *when.Parser
	rel      []relativeRule
	abs      absoluteParser
}

// NewDateTimeParser creates a parser for language. Values are expressed in loc.
func NewDateTimeParser(language string, loc *time.Location) *DateTimeParser {
	if loc == nil {
		loc = time.UTC
	}
	p := &DateTimeParser{language: language, loc: loc, abs: newAbsoluteParser(language)}
	if language == "en" || relativeRules[language] == nil {
		p.when = when.New(nil)
		p.when.Add(en.All...)
	} else {
		p.rel = relativeRules[language]
	}
	return p
}

// Find returns the first date-time expression of sentence, relative to now.
func (p *DateTimeParser) Find(sentence string, now time.Time) (DateTimeResult, bool) {
	if res, ok := p.find(sentence, now); ok {
		return res, true
	}
	conj, ok := conjunctions[p.language]
	if !ok || !strings.Contains(sentence, conj[0]) {
		return DateTimeResult{}, false
	}
	res, ok := p.find(strings.ReplaceAll(sentence, conj[0], conj[1]), now)
	if !ok {
		return DateTimeResult{}, false
	}
	res.Sentence = strings.ReplaceAll(res.Sentence, conj[1], conj[0])
	if frag, ok := res.Info["frag"].(string); ok {
		res.Info["frag"] = strings.ReplaceAll(frag, conj[1], conj[0])
	}
	return res, true
}

func (p *DateTimeParser) find(sentence string, now time.Time) (DateTimeResult, bool) {
	now = now.In(p.loc)

	if start, end, t, ok := p.relative(sentence, now); ok {
		frag := sentence[start:end]
		info := relativeInfo(frag, p.language)
		return p.result(sentence, start, end, t, info), true
	}

	m, ok := p.abs.find(sentence, now)
	if !ok {
		return DateTimeResult{}, false
	}
	// Fields stated by the text are those that do not move with the anchor.
	a1, _ := p.abs.find(sentence, anchor1)
	a2, _ := p.abs.find(sentence, anchor2)
	t1, t2 := a1.t, a2.t
	noTime := isMidnight(t1) && isMidnight(t2)
	info := flags(
		t1.Year() == t2.Year(),
		t1.Month() == t2.Month(),
		t1.Day() == t2.Day(),
		t1.Hour() == t2.Hour() && !noTime,
		t1.Minute() == t2.Minute() && !noTime,
		t1.Second() == t2.Second() && !noTime,
	)
	return p.result(sentence, m.start, m.end, m.t, info), true
}

func (p *DateTimeParser) result(sentence string, start, end int, t time.Time, info map[string]any) DateTimeResult {
	value := t.In(p.loc).Format(isoLayout)
	info["frag"] = sentence[start:end]
	return DateTimeResult{
		Sentence: sentence[:start] + value + sentence[end:],
		Value:    value,
		Info:     info,
	}
}

// relative finds a relative expression and resolves it against now. A clock
// time right after it ("tomorrow at 3pm") is part of the expression.
func (p *DateTimeParser) relative(sentence string, now time.Time) (int, int, time.Time, bool) {
	var (
		start, end int
		t          time.Time
	)
	if p.when != nil {
		r, err := p.when.Parse(sentence, now)
		if err != nil || r == nil {
			return 0, 0, time.Time{}, false
		}
		start, end = trimSpan(sentence, r.Index, r.Index+len(r.Text))
		if start >= end || !hasRelativeCue(sentence[start:end]) {
			return 0, 0, time.Time{}, false
		}
		t = r.Time
	} else {
		var ok bool
		start, end, t, ok = matchRelative(p.rel, p.language, sentence, now)
		if !ok {
			return 0, 0, time.Time{}, false
		}
	}

	end = p.abs.extendWithClock(sentence, end)
	if c, ok := clockIn(sentence[start:end]); ok {
		t = time.Date(t.Year(), t.Month(), t.Day(), c.hour, c.minute, c.second, 0, t.Location())
	}
	return start, end, t.In(p.loc), true
}

func trimSpan(s string, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	for start < end && !isWordByte(s[start]) {
		start++
	}
	for end > start && !isWordByte(s[end-1]) && s[end-1] != '.' {
		end--
	}
	return start, end
}

// isWordByte accepts ASCII letters and digits and any non-ASCII byte.
func isWordByte(b byte) bool {
	return b >= 0x80 || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func hasRelativeCue(frag string) bool {
	for _, w := range strings.Fields(strings.ToLower(frag)) {
		w = strings.Trim(w, ".,;:!?")
		for _, cue := range enRelativeCues {
			if w == cue {
				return true
			}
		}
	}
	return false
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

func flags(year, month, day, hour, minute, second bool) map[string]any {
	return map[string]any{
		"year":   year,
		"month":  month,
		"day":    day,
		"hour":   hour,
		"minute": minute,
		"second": second,
	}
}

// relativeInfo derives the stated fields from the most precise unit word in
// frag, then adds the clock fields written explicitly.
func relativeInfo(frag, language string) map[string]any {
	units, ok := unitWords[language]
	if !ok {
		units = unitWords["en"]
	}
	words := strings.FieldsFunc(strings.ToLower(frag), func(r rune) bool {
		return !(r == '\'' || r == '-' || isLetterOrDigit(r))
	})
	has := func(list []string) bool {
		for _, w := range words {
			for _, u := range list {
				if w == u {
					return true
				}
			}
		}
		return false
	}

	var info map[string]any
	switch {
	case has(units[0]):
		info = flags(true, true, true, true, true, true)
	case has(units[1]):
		info = flags(true, true, true, true, true, false)
	case has(units[2]):
		info = flags(true, true, true, true, false, false)
	case has(units[3]):
		info = flags(true, true, true, false, false, false)
	case has(units[4]):
		info = flags(true, true, false, false, false, false)
	case has(units[5]):
		info = flags(true, false, false, false, false, false)
	default:
		// today, tomorrow, weekdays
		info = flags(true, true, true, false, false, false)
	}

	if c, ok := clockIn(frag); ok {
		info["hour"] = true
		info["minute"] = true
		if c.hasSecond {
			info["second"] = true
		}
	}
	return info
}
