package ner_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/ner"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Friday 10 May 2024, 10:00 UTC.
var fixedNow = time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

func newNER(language string) *ner.Simple {
	return ner.NewSimple(ner.Options{
		Language: language,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
}

func cityEntity() *types.Entity {
	return types.NewEntity("city_entity", "",
		types.Entry("Barcelona", "BCN", "barna"),
		types.Entry("Madrid"),
	)
}

func TestPredict_CustomEntitySynonym(t *testing.T) {
	city := cityEntity()
	weather := &types.Intent{
		Name:              "weather_intent",
		TrainingSentences: []string{"weather in CITY"},
		Parameters:        []*types.IntentParameter{types.Param("city1", "CITY", city)},
	}
	n := newNER("en")
	n.Train([]*types.Entity{city}, func(s string) string { return s })

	pred := n.Predict([]*types.Intent{weather}, "weather in BCN")

	require.Len(t, pred.Parameters[weather], 1)
	assert.Equal(t, "city1", pred.Parameters[weather][0].Name)
	assert.Equal(t, "Barcelona", pred.Parameters[weather][0].Value)
	sentence, ok := pred.SentenceOf(weather)
	require.True(t, ok)
	assert.Equal(t, "weather in CITY_ENTITY", sentence)
}

func TestPredict_LongestCandidateFirst(t *testing.T) {
	city := types.NewEntity("city_entity", "",
		types.Entry("York"),
		types.Entry("New York", "NYC"),
	)
	intent := &types.Intent{
		Name:       "travel_intent",
		Parameters: []*types.IntentParameter{types.Param("from", "A", city), types.Param("to", "B", city)},
	}
	pred := newNER("en").Predict([]*types.Intent{intent}, "from York to New York")

	want := []*types.MatchedParameter{
		{Name: "from", Value: "York"},
		{Name: "to", Value: "New York"},
	}
	if diff := cmp.Diff(want, pred.Parameters[intent], cmpopts.IgnoreFields(types.MatchedParameter{}, "Info")); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
	sentence, _ := pred.SentenceOf(intent)
	assert.Equal(t, "from CITY_ENTITY to CITY_ENTITY", sentence)
}

func TestPredict_MoreValuesThanParameters(t *testing.T) {
	city := cityEntity()
	intent := &types.Intent{
		Name:       "weather_intent",
		Parameters: []*types.IntentParameter{types.Param("city1", "CITY", city)},
	}
	pred := newNER("en").Predict([]*types.Intent{intent}, "barna or Madrid")

	params := pred.Parameters[intent]
	require.Len(t, params, 1)
	assert.Equal(t, "Barcelona", params[0].Value)
	sentence, _ := pred.SentenceOf(intent)
	assert.Equal(t, "CITY_ENTITY or Madrid", sentence)
}

func TestPredict_UnfilledParametersAreNil(t *testing.T) {
	intent := &types.Intent{
		Name: "order_intent",
		Parameters: []*types.IntentParameter{
			types.Param("city", "CITY", cityEntity()),
			types.Param("amount", "NUM", types.NumberEntity),
		},
	}
	pred := newNER("en").Predict([]*types.Intent{intent}, "hello there")

	params := pred.Parameters[intent]
	require.Len(t, params, 2)
	for _, p := range params {
		assert.Nil(t, p.Value, p.Name)
		assert.NotNil(t, p.Info)
	}
}

func TestPredict_NumberEntity(t *testing.T) {
	intent := &types.Intent{
		Name:       "temperature_intent",
		Parameters: []*types.IntentParameter{types.Param("degrees", "NUM", types.NumberEntity)},
	}
	tests := []struct {
		name     string
		message  string
		value    string
		sentence string
	}{
		{"negative", "it is -5 degrees", "-5", "it is BASE.NUMBER degrees"},
		{"decimal comma", "set it to 21,5 please", "21.5", "set it to BASE.NUMBER please"},
		{"plus sign", "add +3", "3", "add BASE.NUMBER"},
		{"number words", "I want twenty two", "22", "I want BASE.NUMBER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := newNER("en").Predict([]*types.Intent{intent}, tt.message)
			require.Len(t, pred.Parameters[intent], 1)
			assert.Equal(t, tt.value, pred.Parameters[intent][0].Value)
			sentence, _ := pred.SentenceOf(intent)
			assert.Equal(t, tt.sentence, sentence)
		})
	}
}

func TestPredict_SpanishNumberWords(t *testing.T) {
	intent := &types.Intent{
		Name:       "order_intent",
		Parameters: []*types.IntentParameter{types.Param("n", "NUM", types.NumberEntity)},
	}
	pred := newNER("es").Predict([]*types.Intent{intent}, "quiero treinta y cinco")
	assert.Equal(t, "35", pred.Parameters[intent][0].Value)
}

func TestPredict_RelativeDateTime(t *testing.T) {
	intent := &types.Intent{
		Name:       "meeting_intent",
		Parameters: []*types.IntentParameter{types.Param("when", "DATE", types.DateTimeEntity)},
	}
	pred := newNER("en").Predict([]*types.Intent{intent}, "meeting tomorrow at 3pm")

	require.Len(t, pred.Parameters[intent], 1)
	p := pred.Parameters[intent][0]
	assert.Equal(t, "2024-05-11T15:00:00+00:00", p.Value)
	assert.Equal(t, true, p.Info["year"])
	assert.Equal(t, true, p.Info["month"])
	assert.Equal(t, true, p.Info["day"])
	assert.Equal(t, true, p.Info["hour"])
	assert.Equal(t, true, p.Info["minute"])
	assert.Equal(t, false, p.Info["second"])

	sentence, _ := pred.SentenceOf(intent)
	assert.Equal(t, "meeting BASE.DATE-TIME", sentence)
}

func TestPredict_SharedSentencesAreDeduplicated(t *testing.T) {
	hello := &types.Intent{Name: "hello_intent"}
	bye := &types.Intent{Name: "bye_intent"}
	weather := &types.Intent{
		Name:       "weather_intent",
		Parameters: []*types.IntentParameter{types.Param("city1", "CITY", cityEntity())},
	}
	pred := newNER("en").Predict([]*types.Intent{hello, weather, bye}, "hi from Madrid")

	require.Len(t, pred.Sentences, 2)
	assert.Equal(t, "hi from Madrid", pred.Sentences[0].Sentence)
	assert.Equal(t, []*types.Intent{hello, bye}, pred.Sentences[0].Intents)
	assert.Equal(t, "hi from CITY_ENTITY", pred.Sentences[1].Sentence)
	assert.Empty(t, pred.Parameters[hello])
}
