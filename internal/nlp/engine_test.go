package nlp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/rag"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

type stubLLM struct {
	name  string
	reply string
}

func (s *stubLLM) Name() string  { return s.name }
func (s *stubLLM) Model() string { return s.name + "-model" }
func (s *stubLLM) Complete(context.Context, string) (string, error) {
	return s.reply, nil
}
func (s *stubLLM) Chat(context.Context, llm.Request) (string, error) {
	return s.reply, nil
}

type stubSpeech struct{ text string }

func (s stubSpeech) Transcribe(context.Context, []byte, string) (string, error) {
	return s.text, nil
}

func smallConfig() classifier.SimpleConfig {
	cfg := classifier.DefaultSimpleConfig()
	cfg.EmbeddingDim = 16
	cfg.NumEpochs = 100
	return cfg
}

func trainedEngine(t *testing.T) (*nlp.Engine, *types.Intent) {
	t.Helper()
	hello := &types.Intent{Name: "hello_intent", TrainingSentences: []string{"hello", "hi"}}
	bye := &types.Intent{Name: "bye_intent", TrainingSentences: []string{"bye", "see you"}}
	states := []nlp.StateSpec{
		{Name: "initial", Intents: []*types.Intent{hello, bye}},
		{Name: "idle"},
	}

	props := config.New()
	props.Set(config.NLPTimezone, "UTC")
	now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	e := nlp.NewEngine(props, nlp.WithNow(func() time.Time { return now }))
	require.NoError(t, e.Initialize(states, smallConfig()))
	require.NoError(t, e.Train(context.Background(), states, nil, []*types.Intent{hello, bye}))
	return e, hello
}

func TestEngine_TrainBeforeInitialize(t *testing.T) {
	e := nlp.NewEngine(config.New())
	err := e.Train(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, nlp.ErrNotInitialized)
	assert.Equal(t, "raw", e.Process("raw"))
}

func TestEngine_PredictIntent(t *testing.T) {
	e, hello := trainedEngine(t)
	ctx := context.Background()

	pred := e.PredictIntent(ctx, "initial", "hello")
	assert.Same(t, hello, pred.Intent)
	assert.InDelta(t, 1.0, pred.Score, 1e-9)

	pred = e.PredictIntent(ctx, "initial", "qwzx plmk")
	assert.True(t, pred.Intent.IsFallback())
	assert.InDelta(t, 1.0, pred.Score, 1e-9)
	assert.Equal(t, "qwzx plmk", pred.MatchedSentence)

	pred = e.PredictIntent(ctx, "idle", "hello")
	assert.True(t, pred.Intent.IsFallback(), "states without intents always fall back")
}

func TestEngine_LLMClassifierUsesRegistry(t *testing.T) {
	hello := &types.Intent{Name: "hello_intent", TrainingSentences: []string{"hello"}}
	states := []nlp.StateSpec{{Name: "initial", Intents: []*types.Intent{hello}, Config: classifier.NewLLMConfig("stub")}}

	e := nlp.NewEngine(config.New())
	e.RegisterLLM(&stubLLM{name: "stub", reply: `{"hello_intent": {"score": 0.9}}`})
	require.NoError(t, e.Initialize(states, nil))
	require.NoError(t, e.Train(context.Background(), states, nil, []*types.Intent{hello}))

	pred := e.PredictIntent(context.Background(), "initial", "hey there")
	assert.Same(t, hello, pred.Intent)
	assert.InDelta(t, 0.9, pred.Score, 1e-9)
}

func TestBest(t *testing.T) {
	a := &types.Intent{Name: "a"}
	b := &types.Intent{Name: "b"}
	preds := []*types.IntentClassifierPrediction{
		{Intent: a, Score: 0.7},
		{Intent: b, Score: 0.7},
	}
	assert.Same(t, a, nlp.Best(preds, 0.4, "m").Intent, "first prediction wins ties")
	assert.True(t, nlp.Best(preds, 0.8, "m").Intent.IsFallback())
	assert.True(t, nlp.Best(nil, 0, "m").Intent.IsFallback())
}

func TestEngine_Collaborators(t *testing.T) {
	e := nlp.NewEngine(config.New())
	ctx := context.Background()

	_, ok := e.LLM("gpt")
	assert.False(t, ok)
	e.RegisterLLM(&stubLLM{name: "gpt"})
	m, ok := e.LLM("gpt")
	require.True(t, ok)
	assert.Equal(t, "gpt-model", m.Model())

	_, err := e.SpeechToText(ctx, []byte("RIFF"))
	assert.ErrorIs(t, err, nlp.ErrNoSpeechToText)
	e.SetSpeechToText(stubSpeech{text: "hello"})
	got, err := e.SpeechToText(ctx, []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = e.RAG()
	assert.True(t, errors.Is(err, nlp.ErrNoRAG))
	r := rag.New(rag.NewMemoryStore(), nil, &stubLLM{name: "gpt"}, rag.Config{})
	e.SetRAG(r)
	got2, err := e.RAG()
	require.NoError(t, err)
	assert.Same(t, r, got2)
}
