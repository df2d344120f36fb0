package ner

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

func isLetterOrDigit(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// bounded keeps the regexp matches that are not glued to surrounding letters
// or digits.
func bounded(re *regexp.Regexp, s string) [][]int {
	var out [][]int
	for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > 0 {
			first, _ := utf8.DecodeRuneInString(s[m[0]:])
			prev, _ := utf8.DecodeLastRuneInString(s[:m[0]])
			if isLetterOrDigit(first) && isLetterOrDigit(prev) {
				continue
			}
		}
		if m[1] < len(s) {
			last, _ := utf8.DecodeLastRuneInString(s[:m[1]])
			next, _ := utf8.DecodeRuneInString(s[m[1]:])
			if isLetterOrDigit(last) && isLetterOrDigit(next) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func group(s string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

// Clock times

type clockTime struct {
	hour, minute, second int
	hasSecond            bool
}

var clockRes = []*regexp.Regexp{
	// 15:30, 3:30pm, 15:30:10
	regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s*([ap])(?:\.\s?m\.?|m\b))?`),
	// 3pm, 3 p.m.
	regexp.MustCompile(`(?i)(\d{1,2})\s*([ap])(?:\.\s?m\.?|m\b)`),
	// a las 3, a les 5, a la 1
	regexp.MustCompile(`(?i)a\s+(?:las|les|la)\s+(\d{1,2})(?:\s*h)?\b`),
}

// findClock returns the span and value of the first clock time in s.
func findClock(s string) (int, int, clockTime, bool) {
	best := []int(nil)
	var bestClock clockTime
	for i, re := range clockRes {
		for _, m := range bounded(re, s) {
			c, ok := parseClock(i, s, m)
			if !ok {
				continue
			}
			if best == nil || m[0] < best[0] {
				best, bestClock = m, c
			}
			break
		}
	}
	if best == nil {
		return 0, 0, clockTime{}, false
	}
	return best[0], best[1], bestClock, true
}

func parseClock(kind int, s string, m []int) (clockTime, bool) {
	var c clockTime
	var meridiem string
	switch kind {
	case 0:
		c.hour, _ = strconv.Atoi(group(s, m, 1))
		c.minute, _ = strconv.Atoi(group(s, m, 2))
		if sec := group(s, m, 3); sec != "" {
			c.second, _ = strconv.Atoi(sec)
			c.hasSecond = true
		}
		meridiem = group(s, m, 4)
	case 1:
		c.hour, _ = strconv.Atoi(group(s, m, 1))
		meridiem = group(s, m, 2)
	case 2:
		c.hour, _ = strconv.Atoi(group(s, m, 1))
	}
	switch strings.ToLower(meridiem) {
	case "p":
		if c.hour > 12 || c.hour == 0 {
			return c, false
		}
		if c.hour < 12 {
			c.hour += 12
		}
	case "a":
		if c.hour > 12 || c.hour == 0 {
			return c, false
		}
		if c.hour == 12 {
			c.hour = 0
		}
	}
	if c.hour > 23 || c.minute > 59 || c.second > 59 {
		return c, false
	}
	return c, true
}

// clockIn returns the first clock time written in s.
func clockIn(s string) (clockTime, bool) {
	_, _, c, ok := findClock(s)
	return c, ok
}

var clockConnectors = map[string]bool{
	"": true, ",": true, "at": true, "on": true, "around": true, "about": true,
	"a": true, "sobre": true, "cap a": true, "hacia": true,
}

// extendWithClock moves end past a clock time that directly follows it.
func (a absoluteParser) extendWithClock(s string, end int) int {
	cs, ce, _, ok := findClock(s[end:])
	if !ok {
		return end
	}
	if !clockConnectors[strings.ToLower(strings.TrimSpace(s[end:end+cs]))] {
		return end
	}
	return end + ce
}

// Relative expressions for languages without a when rule set

type unit int

const (
	unitSecond unit = iota
	unitMinute
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitYear
)

var unitNames = map[string]map[string]unit{
	"es": {
		"segundo": unitSecond, "segundos": unitSecond, "minuto": unitMinute, "minutos": unitMinute,
		"hora": unitHour, "horas": unitHour, "día": unitDay, "días": unitDay, "dia": unitDay,
		"dias": unitDay, "semana": unitWeek, "semanas": unitWeek, "mes": unitMonth,
		"meses": unitMonth, "año": unitYear, "años": unitYear,
	},
	"ca": {
		"segon": unitSecond, "segons": unitSecond, "minut": unitMinute, "minuts": unitMinute,
		"hora": unitHour, "hores": unitHour, "dia": unitDay, "dies": unitDay,
		"setmana": unitWeek, "setmanes": unitWeek, "mes": unitMonth, "mesos": unitMonth,
		"any": unitYear, "anys": unitYear,
	},
}

func addUnits(t time.Time, n int, u unit) time.Time {
	switch u {
	case unitSecond:
		return t.Add(time.Duration(n) * time.Second)
	case unitMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case unitHour:
		return t.Add(time.Duration(n) * time.Hour)
	case unitDay:
		return t.AddDate(0, 0, n)
	case unitWeek:
		return t.AddDate(0, 0, 7*n)
	case unitMonth:
		return t.AddDate(0, n, 0)
	}
	return t.AddDate(n, 0, 0)
}

type relativeRule struct {
	re      *regexp.Regexp
	resolve func(s string, m []int, language string, now time.Time) (time.Time, bool)
}

func dayOffset(days int) func(string, []int, string, time.Time) (time.Time, bool) {
	return func(_ string, _ []int, _ string, now time.Time) (time.Time, bool) {
		return now.AddDate(0, 0, days), true
	}
}

// quantity resolves "<n> <unit>" captured in groups 1 and 2.
func quantity(sign int) func(string, []int, string, time.Time) (time.Time, bool) {
	return func(s string, m []int, language string, now time.Time) (time.Time, bool) {
		u, ok := unitNames[language][strings.ToLower(group(s, m, 2))]
		if !ok {
			return time.Time{}, false
		}
		raw := group(s, m, 1)
		n, err := strconv.Atoi(raw)
		if err != nil {
			l, ok := lexicons[language]
			if !ok {
				return time.Time{}, false
			}
			if n, ok = l.wordValue(raw); !ok {
				return time.Time{}, false
			}
		}
		return addUnits(now, sign*n, u), true
	}
}

// weekday resolves a weekday name in group 2; group 1 marks "next".
func weekday(days map[string]time.Weekday) func(string, []int, string, time.Time) (time.Time, bool) {
	return func(s string, m []int, _ string, now time.Time) (time.Time, bool) {
		wd, ok := days[strings.ToLower(group(s, m, 2))]
		if !ok {
			return time.Time{}, false
		}
		ahead := (int(wd) - int(now.Weekday()) + 7) % 7
		if ahead == 0 && group(s, m, 1) != "" {
			ahead = 7
		}
		return now.AddDate(0, 0, ahead), true
	}
}

var relativeRules = map[string][]relativeRule{
	"es": {
		{regexp.MustCompile(`(?i)pasado\s+mañana`), dayOffset(2)},
		{regexp.MustCompile(`(?i)(?:antes\s+de\s+ayer|anteayer)`), dayOffset(-2)},
		{regexp.MustCompile(`(?i)(?:dentro\s+de|en)\s+(\d+|\p{L}+)\s+(\p{L}+)`), quantity(1)},
		{regexp.MustCompile(`(?i)hace\s+(\d+|\p{L}+)\s+(\p{L}+)`), quantity(-1)},
		{regexp.MustCompile(`(?i)(?:el\s+)?(pr[oó]ximo\s+)?(lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo)`), weekday(map[string]time.Weekday{
			"lunes": time.Monday, "martes": time.Tuesday, "miércoles": time.Wednesday, "miercoles": time.Wednesday,
			"jueves": time.Thursday, "viernes": time.Friday, "sábado": time.Saturday, "sabado": time.Saturday,
			"domingo": time.Sunday,
		})},
		{regexp.MustCompile(`(?i)hoy|ahora`), dayOffset(0)},
		{regexp.MustCompile(`(?i)mañana|manana`), dayOffset(1)},
		{regexp.MustCompile(`(?i)ayer`), dayOffset(-1)},
	},
	"ca": {
		{regexp.MustCompile(`(?i)dem[aà]\s+passat`), dayOffset(2)},
		{regexp.MustCompile(`(?i)abans[\s-]+d['’]ahir`), dayOffset(-2)},
		{regexp.MustCompile(`(?i)(?:d['’]aqu[ií]\s+a|en)\s+(\d+|\p{L}+)\s+(\p{L}+)`), quantity(1)},
		{regexp.MustCompile(`(?i)fa\s+(\d+|\p{L}+)\s+(\p{L}+)`), quantity(-1)},
		{regexp.MustCompile(`(?i)(?:el\s+)?(proper\s+|pr[oò]xim\s+)?(dilluns|dimarts|dimecres|dijous|divendres|dissabte|diumenge)`), weekday(map[string]time.Weekday{
			"dilluns": time.Monday, "dimarts": time.Tuesday, "dimecres": time.Wednesday, "dijous": time.Thursday,
			"divendres": time.Friday, "dissabte": time.Saturday, "diumenge": time.Sunday,
		})},
		{regexp.MustCompile(`(?i)avui|ara`), dayOffset(0)},
		{regexp.MustCompile(`(?i)dem[aà]`), dayOffset(1)},
		{regexp.MustCompile(`(?i)ahir`), dayOffset(-1)},
	},
}

// matchRelative returns the leftmost (then longest) relative expression.
func matchRelative(rules []relativeRule, language, s string, now time.Time) (int, int, time.Time, bool) {
	found := false
	var start, end int
	var t time.Time
	for _, rule := range rules {
		for _, m := range bounded(rule.re, s) {
			rt, ok := rule.resolve(s, m, language, now)
			if !ok {
				continue
			}
			if !found || m[0] < start || (m[0] == start && m[1] > end) {
				found, start, end, t = true, m[0], m[1], rt
			}
			break
		}
	}
	return start, end, t, found
}

// Absolute dates

var monthNames = map[string]map[string]time.Month{
	"en": {
		"january": 1, "jan": 1, "february": 2, "feb": 2, "march": 3, "mar": 3, "april": 4, "apr": 4,
		"may": 5, "june": 6, "jun": 6, "july": 7, "jul": 7, "august": 8, "aug": 8, "september": 9,
		"sept": 9, "sep": 9, "october": 10, "oct": 10, "november": 11, "nov": 11, "december": 12, "dec": 12,
	},
	"es": {
		"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6, "julio": 7,
		"agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10, "noviembre": 11, "diciembre": 12,
	},
	"ca": {
		"gener": 1, "febrer": 2, "març": 3, "marc": 3, "abril": 4, "maig": 5, "juny": 6, "juliol": 7,
		"agost": 8, "setembre": 9, "octubre": 10, "novembre": 11, "desembre": 12,
	},
}

func monthAlternation(names map[string]time.Month) string {
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	// Longest first so "march" wins over "mar".
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return strings.Join(keys, "|")
}

// dateRule extracts year (0 if absent), month and day from a match.
type dateRule struct {
	re      *regexp.Regexp
	extract func(s string, m []int) (year, month, day int)
}

type absoluteParser struct {
	months map[string]time.Month
	rules  []dateRule
}

type absMatch struct {
	start, end int
	t          time.Time
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func newAbsoluteParser(language string) absoluteParser {
	months, ok := monthNames[language]
	if !ok {
		months = monthNames["en"]
	}
	alt := monthAlternation(months)
	month := func(name string) int { return int(months[strings.ToLower(name)]) }

	rules := []dateRule{
		{regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`), func(s string, m []int) (int, int, int) {
			return atoi(group(s, m, 1)), atoi(group(s, m, 2)), atoi(group(s, m, 3))
		}},
	}
	numeric := regexp.MustCompile(`(\d{1,2})[/.-](\d{1,2})[/.-](\d{4}|\d{2})`)
	if language == "es" || language == "ca" {
		rules = append(rules, dateRule{numeric, func(s string, m []int) (int, int, int) {
			return atoi(group(s, m, 3)), atoi(group(s, m, 2)), atoi(group(s, m, 1))
		}})
	} else {
		rules = append(rules, dateRule{numeric, func(s string, m []int) (int, int, int) {
			return atoi(group(s, m, 3)), atoi(group(s, m, 1)), atoi(group(s, m, 2))
		}})
	}

	switch language {
	case "es":
		rules = append(rules, dateRule{
			regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+(` + alt + `)(?:\s+(?:de|del)\s+(\d{4}))?`),
			func(s string, m []int) (int, int, int) {
				return atoi(group(s, m, 3)), month(group(s, m, 2)), atoi(group(s, m, 1))
			}})
	case "ca":
		rules = append(rules, dateRule{
			regexp.MustCompile(`(?i)(\d{1,2})\s+(?:de\s+|d['’])(` + alt + `)(?:\s+(?:de|del)\s+(\d{4}))?`),
			func(s string, m []int) (int, int, int) {
				return atoi(group(s, m, 3)), month(group(s, m, 2)), atoi(group(s, m, 1))
			}})
	default:
		rules = append(rules,
			dateRule{
				regexp.MustCompile(`(?i)(` + alt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?`),
				func(s string, m []int) (int, int, int) {
					return atoi(group(s, m, 3)), month(group(s, m, 1)), atoi(group(s, m, 2))
				}},
			dateRule{
				regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + alt + `)(?:,?\s+(\d{4}))?`),
				func(s string, m []int) (int, int, int) {
					return atoi(group(s, m, 3)), month(group(s, m, 2)), atoi(group(s, m, 1))
				}},
		)
	}
	return absoluteParser{months: months, rules: rules}
}

// find returns the first absolute date or time of s. Missing date fields
// come from base; a date without a time is at midnight.
func (a absoluteParser) find(s string, base time.Time) (absMatch, bool) {
	var best *absMatch
	for _, rule := range a.rules {
		for _, m := range bounded(rule.re, s) {
			year, month, day := rule.extract(s, m)
			if year == 0 {
				year = base.Year()
			} else if year < 100 {
				year += 2000
			}
			if month < 1 || month > 12 || day < 1 {
				continue
			}
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, base.Location())
			if t.Day() != day {
				continue
			}
			if best == nil || m[0] < best.start {
				best = &absMatch{start: m[0], end: m[1], t: t}
			}
			break
		}
	}

	if best != nil {
		best.end = a.extendWithClock(s, best.end)
		if c, ok := clockIn(s[best.start:best.end]); ok {
			t := best.t
			best.t = time.Date(t.Year(), t.Month(), t.Day(), c.hour, c.minute, c.second, 0, t.Location())
		}
		return *best, true
	}

	start, end, c, ok := findClock(s)
	if !ok {
		return absMatch{}, false
	}
	t := time.Date(base.Year(), base.Month(), base.Day(), c.hour, c.minute, c.second, 0, base.Location())
	return absMatch{start: start, end: end, t: t}, true
}
