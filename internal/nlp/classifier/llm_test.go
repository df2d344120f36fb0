package classifier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Name() string  { return "fake" }
func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.Request) (string, error) {
	return f.Complete(ctx, req.Turns[len(req.Turns)-1].Content)
}

func llmSetup(t *testing.T, model *fakeLLM, cfg classifier.LLMConfig) (classifier.Classifier, *types.Intent, *types.Intent) {
	t.Helper()
	city := types.NewEntity("city_entity", "Cities we know the weather of", types.Entry("Barcelona", "BCN"))
	weather := &types.Intent{
		Name:              "weather_intent",
		Description:       "asks for the weather",
		TrainingSentences: []string{"what is the weather in CITY"},
		Parameters: []*types.IntentParameter{
			types.Param("city", "CITY", city),
			types.Param("day", "DAY", types.DateTimeEntity),
		},
	}
	hello := &types.Intent{Name: "hello_intent", TrainingSentences: []string{"hello"}}

	env := newEnv(city)
	env.LLM = func(name string) (llm.LLM, bool) {
		if name != "fake" {
			return nil, false
		}
		return model, true
	}
	c, err := classifier.New(cfg, []*types.Intent{weather, hello}, env)
	require.NoError(t, err)
	return c, weather, hello
}

func TestLLM_PredictBeforeTrain(t *testing.T) {
	c, _, _ := llmSetup(t, &fakeLLM{}, classifier.NewLLMConfig("fake"))
	_, err := c.Predict(context.Background(), "hi")
	assert.ErrorIs(t, err, classifier.ErrNotTrained)
}

func TestLLM_ParsesAnswer(t *testing.T) {
	model := &fakeLLM{reply: "Sure! ```json\n" + `{
		"hello_intent": {"score": 0.1},
		"weather_intent": {"score": 0.92, "parameters": {"city": "Barcelona"}},
		"unknown_intent": {"score": 1}
	}` + "\n```"}
	c, weather, hello := llmSetup(t, model, classifier.NewLLMConfig("fake"))
	require.NoError(t, c.Train(context.Background()))

	preds, err := c.Predict(context.Background(), "weather in BCN?")
	require.NoError(t, err)
	require.Len(t, preds, 2)

	assert.Same(t, weather, preds[0].Intent)
	assert.InDelta(t, 0.92, preds[0].Score, 1e-9)
	assert.Equal(t, "weather in BCN?", preds[0].MatchedSentence)
	assert.Equal(t, "Barcelona", preds[0].Parameter("city").Value)
	assert.Nil(t, preds[0].Parameter("day").Value)

	assert.Same(t, hello, preds[1].Intent)
	assert.Empty(t, preds[1].MatchedParameters)

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, "'weather in BCN?'")
	assert.Contains(t, prompt, "asks for the weather")
	assert.Contains(t, prompt, "what is the weather in CITY")
	assert.Contains(t, prompt, "BCN")
	assert.Contains(t, prompt, "(ISO 639-1) is 'en'")
}

func TestLLM_RepairsMalformedJSON(t *testing.T) {
	model := &fakeLLM{reply: `{'hello_intent': {'score': 0.8,},}`}
	c, _, hello := llmSetup(t, model, classifier.NewLLMConfig("fake"))
	require.NoError(t, c.Train(context.Background()))

	preds, err := c.Predict(context.Background(), "hey")
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Same(t, hello, preds[0].Intent)
	assert.InDelta(t, 0.8, preds[0].Score, 1e-9)
}

func TestLLM_FailuresGiveNoPredictions(t *testing.T) {
	tests := []struct {
		name  string
		cfg   classifier.LLMConfig
		model *fakeLLM
	}{
		{"llm error", classifier.NewLLMConfig("fake"), &fakeLLM{err: errors.New("boom")}},
		{"not json", classifier.NewLLMConfig("fake"), &fakeLLM{reply: "I cannot help"}},
		{"unknown llm", classifier.NewLLMConfig("missing"), &fakeLLM{reply: `{"hello_intent": {"score": 1}}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := llmSetup(t, tt.model, tt.cfg)
			require.NoError(t, c.Train(context.Background()))
			preds, err := c.Predict(context.Background(), "hello")
			require.NoError(t, err)
			assert.Empty(t, preds)
		})
	}
}

func TestLLM_ConfigFlagsTrimPrompt(t *testing.T) {
	model := &fakeLLM{reply: `{}`}
	cfg := classifier.LLMConfig{LLMName: "fake"}
	c, _, _ := llmSetup(t, model, cfg)
	require.NoError(t, c.Train(context.Background()))

	_, err := c.Predict(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, model.prompts, 1)
	assert.NotContains(t, model.prompts[0], "what is the weather in CITY")
	assert.NotContains(t, model.prompts[0], "asks for the weather")
	assert.NotContains(t, model.prompts[0], "Cities we know")
	assert.NotContains(t, model.prompts[0], "BCN")
}
