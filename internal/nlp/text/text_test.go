package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/text"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		lang string
		want []string
	}{
		{"punctuation", "Hello, world!", "en", []string{"Hello", ",", "world", "!"}},
		{"decimal number", "it costs 3.50 euros", "en", []string{"it", "costs", "3.50", "euros"}},
		{"signed number", "it is -5 now", "en", []string{"it", "is", "-5", "now"}},
		{"clitics", "I don't know what's up", "en", []string{"I", "do", "n't", "know", "what", "'s", "up"}},
		{"curly clitic", "I don’t know", "en", []string{"I", "do", "n’t", "know"}},
		{"mixed apostrophes", "rock’n’roll's Café’s", "en", []string{"rock’n’roll", "'s", "Café", "’s"}},
		{"uppercase clitic", "WHAT’S UP", "en", []string{"WHAT", "’S", "UP"}},
		{"hyphenated", "a well-known place", "en", []string{"a", "well-known", "place"}},
		{"catalan apostrophe", "l'home", "ca", []string{"l'home"}},
		{"accents", "qué tal", "es", []string{"qué", "tal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, text.Tokenize(tt.in, tt.lang))
		})
	}
}

func TestProcess(t *testing.T) {
	p := text.New("en", true)
	assert.True(t, p.Stems())
	assert.Equal(t, "run with cat", p.Process("running with cats"))
	assert.Equal(t, "weather in CITY ENTITY ?", p.Process("weather in CITY_ENTITY?"))

	raw := text.New("en", false)
	assert.Equal(t, "Running with cats", raw.Process("Running  with cats"))
}

func TestProcess_LanguagesWithoutStemmer(t *testing.T) {
	p := text.New("ca", true)
	assert.False(t, p.Stems())
	assert.Equal(t, "bon dia", p.Process("bon dia"))

	assert.Equal(t, "en", text.New("", true).Language())
}

func TestIsUpper(t *testing.T) {
	assert.True(t, text.IsUpper("CITY"))
	assert.True(t, text.IsUpper("BASE.NUMBER"))
	assert.False(t, text.IsUpper("City"))
	assert.False(t, text.IsUpper("123"))
}
