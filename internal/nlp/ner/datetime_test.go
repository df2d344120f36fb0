package ner_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/ner"
)

func TestDateTime_Absolute(t *testing.T) {
	tests := []struct {
		name     string
		language string
		sentence string
		value    string
		frag     string
		hasTime  bool
	}{
		{"month day year", "en", "my birthday is on 03/04/2024", "2024-03-04T00:00:00+00:00", "03/04/2024", false},
		{"day month year", "es", "mi cumpleaños es el 03/04/2024", "2024-04-03T00:00:00+00:00", "03/04/2024", false},
		{"iso with clock", "en", "deadline 2024-06-01 at 18:30", "2024-06-01T18:30:00+00:00", "2024-06-01 at 18:30", true},
		{"month name", "en", "see you on March 3rd, 2025", "2025-03-03T00:00:00+00:00", "March 3rd, 2025", false},
		{"spanish month name", "es", "llego el 5 de mayo de 2024", "2024-05-05T00:00:00+00:00", "5 de mayo de 2024", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ner.NewDateTimeParser(tt.language, time.UTC)
			res, ok := p.Find(tt.sentence, fixedNow)
			require.True(t, ok)
			assert.Equal(t, tt.value, res.Value)
			assert.Equal(t, tt.frag, res.Info["frag"])
			assert.Equal(t, true, res.Info["year"])
			assert.Equal(t, true, res.Info["month"])
			assert.Equal(t, true, res.Info["day"])
			assert.Equal(t, tt.hasTime, res.Info["hour"])
		})
	}
}

func TestDateTime_ClockOnlyTakesToday(t *testing.T) {
	p := ner.NewDateTimeParser("en", time.UTC)
	res, ok := p.Find("call me at 18:45", fixedNow)
	require.True(t, ok)

	assert.Equal(t, "2024-05-10T18:45:00+00:00", res.Value)
	assert.Equal(t, false, res.Info["year"])
	assert.Equal(t, false, res.Info["day"])
	assert.Equal(t, true, res.Info["hour"])
	assert.Equal(t, true, res.Info["minute"])
}

func TestDateTime_SpanishRelative(t *testing.T) {
	p := ner.NewDateTimeParser("es", time.UTC)

	res, ok := p.Find("quedamos mañana a las 5", fixedNow)
	require.True(t, ok)
	assert.Equal(t, "2024-05-11T05:00:00+00:00", res.Value)
	assert.Equal(t, "mañana a las 5", res.Info["frag"])
	assert.Equal(t, true, res.Info["hour"])

	res, ok = p.Find("lo compré hace 3 días", fixedNow)
	require.True(t, ok)
	assert.Equal(t, "2024-05-07T10:00:00+00:00", res.Value)
	assert.Equal(t, true, res.Info["day"])
	assert.Equal(t, false, res.Info["hour"])

	res, ok = p.Find("nos vemos pasado mañana", fixedNow)
	require.True(t, ok)
	assert.Equal(t, "pasado mañana", res.Info["frag"])
	assert.Equal(t, "2024-05-12T10:00:00+00:00", res.Value)
}

func TestDateTime_CatalanWeekday(t *testing.T) {
	p := ner.NewDateTimeParser("ca", time.UTC)
	res, ok := p.Find("ens veiem dilluns", fixedNow)
	require.True(t, ok)
	assert.Equal(t, "2024-05-13T10:00:00+00:00", res.Value)
	assert.Equal(t, "ens veiem "+res.Value, res.Sentence)
}

func TestDateTime_NothingFound(t *testing.T) {
	p := ner.NewDateTimeParser("en", time.UTC)
	_, ok := p.Find("hello there", fixedNow)
	assert.False(t, ok)
}
