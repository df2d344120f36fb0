package examples_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/examples"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
)

func newAgent(t *testing.T, build examples.Builder) *core.Agent {
	t.Helper()
	props := config.New()
	props.Set(config.NLPTimezone, "UTC")
	cfg := classifier.DefaultSimpleConfig()
	cfg.EmbeddingDim = 16
	cfg.NumEpochs = 100

	a := core.New("example", core.WithProperties(props))
	a.SetDefaultClassifierConfig(cfg)
	require.NoError(t, build(a))
	require.NoError(t, a.Train(context.Background()))
	return a
}

func converse(t *testing.T, a *core.Agent, messages ...string) []string {
	t.Helper()
	ctx := context.Background()
	s, err := a.GetOrCreateSession(ctx, "user", nil)
	require.NoError(t, err)
	for _, m := range messages {
		require.NoError(t, a.ReceiveMessage(ctx, "user", m))
	}
	var out []string
	for _, m := range s.ChatHistory(ctx, 0) {
		if !m.IsUser {
			out = append(out, m.Text())
		}
	}
	return out
}

func TestGreetings(t *testing.T) {
	a := newAgent(t, examples.Greetings)
	assert.Equal(t, []string{
		"Hello!",
		"Hi! Say bye when you are done.",
		"Bye! Let's start again...",
		"Hello!",
	}, converse(t, a, "hello", "bye"))
}

func TestWeather(t *testing.T) {
	var cities []string
	forecast := func(_ context.Context, city string) (float64, error) {
		cities = append(cities, city)
		if city == "Madrid" {
			return 25, nil
		}
		return 10, nil
	}
	a := newAgent(t, examples.Weather(forecast))

	assert.Equal(t, []string{
		"Waiting...",
		"The weather in Barcelona is 10.00°C", "🥶", "Waiting...",
		"The weather in Madrid is 25.00°C", "🥵", "Waiting...",
	}, converse(t, a, "what is the weather in BCN?", "weather in Madrid"))
	assert.Equal(t, []string{"Barcelona", "Madrid"}, cities)
}

func TestRandomForecast(t *testing.T) {
	for range 100 {
		temp, err := examples.RandomForecast(context.Background(), "Madrid")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, temp, 0.0)
		assert.LessOrEqual(t, temp, 30.0)
	}
}

// tutorLLM classifies questions containing "2+2" as maths.
type tutorLLM struct {
	mu   sync.Mutex
	chat []llm.Request
}

func (m *tutorLLM) Name() string  { return "tutor" }
func (m *tutorLLM) Model() string { return "tutor-1" }

func (m *tutorLLM) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "recognize the intent"):
		if strings.Contains(prompt, "2+2") {
			return `{"maths_intent": {"score": 0.95}}`, nil
		}
		return `{}`, nil
	case strings.Contains(prompt, "fallback mechanism"):
		return "Sorry, I don't know the answer", nil
	}
	return "Hey, nice to meet you!", nil
}

func (m *tutorLLM) Chat(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.chat = append(m.chat, req)
	m.mu.Unlock()
	return "4", nil
}

func TestLLMAgent(t *testing.T) {
	model := &tutorLLM{}
	a := newAgent(t, examples.LLMAgent(model))

	assert.Equal(t, []string{
		"Hey, nice to meet you!",
		"4",
		"Hey, nice to meet you!",
		"Sorry, I don't know the answer",
	}, converse(t, a, "what is 2+2?", "tell me a joke"))

	require.Len(t, model.chat, 1)
	assert.Equal(t, []llm.Turn{
		{Role: llm.RoleAssistant, Content: "Hey, nice to meet you!"},
		{Role: llm.RoleUser, Content: "what is 2+2?"},
	}, model.chat[0].Turns)

	state, ok := a.State("greetings_state")
	require.True(t, ok)
	assert.Len(t, state.Intents(), 5)
	for _, i := range a.Intents() {
		assert.NotEmpty(t, i.Description, i.Name)
		assert.Empty(t, i.TrainingSentences, i.Name)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range examples.Names() {
		build, err := examples.Lookup(name, llm.ProviderOllama)
		require.NoError(t, err, name)
		a := core.New(name)
		assert.NoError(t, build(a), name)
	}

	_, err := examples.Lookup("pizza", "")
	assert.ErrorContains(t, err, "unknown example agent")

	build, err := examples.Lookup("llm", "bogus")
	require.NoError(t, err)
	assert.Error(t, build(core.New("llm")))
}

var _ llm.LLM = (*tutorLLM)(nil)

func TestWeather_UnknownCity(t *testing.T) {
	a := newAgent(t, examples.Weather(examples.RandomForecast))
	texts := converse(t, a, "weather in Paris")
	require.Len(t, texts, 3)
	assert.Equal(t, "Sorry, I didn't get the city", texts[1])
}
