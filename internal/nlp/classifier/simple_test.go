package classifier_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/ner"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/text"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

func newEnv(entities ...*types.Entity) classifier.Environment {
	proc := text.New("en", true)
	n := ner.NewSimple(ner.Options{Language: "en", PreProcessing: true})
	n.Train(entities, proc.Process)
	return classifier.Environment{NER: n, Processor: proc, Language: "en"}
}

func greetingIntents() (*types.Intent, *types.Intent) {
	hello := &types.Intent{Name: "hello_intent", TrainingSentences: []string{"hello", "hi", "good morning"}}
	bye := &types.Intent{Name: "bye_intent", TrainingSentences: []string{"bye", "goodbye", "see you later"}}
	return hello, bye
}

func fastConfig() classifier.SimpleConfig {
	cfg := classifier.DefaultSimpleConfig()
	cfg.EmbeddingDim = 16
	cfg.NumEpochs = 200
	cfg.LearningRate = 0.01
	return cfg
}

func scoresByIntent(preds []*types.IntentClassifierPrediction) map[string]float64 {
	out := map[string]float64{}
	for _, p := range preds {
		out[p.Intent.Name] = p.Score
	}
	return out
}

func TestNew_RequiresIntents(t *testing.T) {
	_, err := classifier.New(nil, nil, newEnv())
	assert.ErrorIs(t, err, classifier.ErrNoIntents)
}

func TestSimple_PredictBeforeTrain(t *testing.T) {
	hello, bye := greetingIntents()
	c := classifier.NewSimple(fastConfig(), []*types.Intent{hello, bye}, newEnv())
	_, err := c.Predict(context.Background(), "hello")
	assert.ErrorIs(t, err, classifier.ErrNotTrained)
}

func TestSimple_ExactMatchScoresOne(t *testing.T) {
	hello, bye := greetingIntents()
	c, err := classifier.New(fastConfig(), []*types.Intent{hello, bye}, newEnv())
	require.NoError(t, err)
	require.NoError(t, c.Train(context.Background()))

	preds, err := c.Predict(context.Background(), "Good morning")
	require.NoError(t, err)
	require.Len(t, preds, 2)
	scores := scoresByIntent(preds)
	assert.Equal(t, 1.0, scores["hello_intent"])
	assert.Equal(t, 0.0, scores["bye_intent"])
}

func TestSimple_AllOutOfVocabularyScoresZero(t *testing.T) {
	hello, bye := greetingIntents()
	c, err := classifier.New(fastConfig(), []*types.Intent{hello, bye}, newEnv())
	require.NoError(t, err)
	require.NoError(t, c.Train(context.Background()))

	preds, err := c.Predict(context.Background(), "xyzzy plugh")
	require.NoError(t, err)
	for _, p := range preds {
		assert.Zero(t, p.Score, p.Intent.Name)
	}
}

func TestSimple_NetworkPrediction(t *testing.T) {
	hello, bye := greetingIntents()
	train := func() map[string]float64 {
		c, err := classifier.New(fastConfig(), []*types.Intent{hello, bye}, newEnv())
		require.NoError(t, err)
		require.NoError(t, c.Train(context.Background()))
		preds, err := c.Predict(context.Background(), "hi there")
		require.NoError(t, err)
		for _, p := range preds {
			assert.GreaterOrEqual(t, p.Score, 0.0)
			assert.LessOrEqual(t, p.Score, 1.0)
		}
		return scoresByIntent(preds)
	}

	first := train()
	assert.Greater(t, first["hello_intent"], first["bye_intent"])
	assert.Equal(t, first, train(), "training is deterministic")
}

func TestSimple_EntityParameters(t *testing.T) {
	city := types.NewEntity("city_entity", "", types.Entry("Barcelona", "BCN"), types.Entry("Madrid"))
	weather := &types.Intent{
		Name:              "weather_intent",
		TrainingSentences: []string{"what is the weather in CITY"},
		Parameters:        []*types.IntentParameter{types.Param("city", "CITY", city)},
	}
	hello, _ := greetingIntents()
	env := newEnv(city)
	for _, i := range []*types.Intent{weather, hello} {
		i.ProcessTrainingSentences(env.Processor.Process)
	}

	c, err := classifier.New(fastConfig(), []*types.Intent{weather, hello}, env)
	require.NoError(t, err)
	require.NoError(t, c.Train(context.Background()))

	preds, err := c.Predict(context.Background(), "what is the weather in Barcelona")
	require.NoError(t, err)
	require.Len(t, preds, 2)

	var got *types.IntentClassifierPrediction
	for _, p := range preds {
		if p.Intent == weather {
			got = p
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, "what is the weather in CITY_ENTITY", got.MatchedSentence)
	require.NotNil(t, got.Parameter("city"))
	assert.Equal(t, "Barcelona", got.Parameter("city").Value)
}
