package types_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

func TestFindWord(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		frag     string
		want     string
	}{
		{"whole word", "weather in BCN", "bcn", "BCN"},
		{"not inside a word", "barnacle and barna", "barna", "barna"},
		{"negative number", "it is -5 degrees", "-5", "-5"},
		{"accented neighbour", "díadia dia", "dia", "dia"},
		{"full sentence", "Madrid", "madrid", "Madrid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := types.FindWord(tt.sentence, tt.frag)
			require.GreaterOrEqual(t, start, 0)
			assert.Equal(t, tt.want, tt.sentence[start:end])
		})
	}

	start, _ := types.FindWord("barnacle", "barna")
	assert.Equal(t, -1, start)
	assert.False(t, types.ContainsWord("anything", ""))
}

func TestReplaceWord_FirstOccurrenceOnly(t *testing.T) {
	got := types.ReplaceWord("city to city", "city", "/temp1/")
	assert.Equal(t, "/temp1/ to city", got)
}

func TestEntity_ProcessEntries(t *testing.T) {
	city := types.NewEntity("city_entity", "",
		types.Entry("Barcelona", "BCN", "barna"),
		types.Entry("Madrid"),
	)
	city.ProcessEntries(strings.ToLower)

	assert.Equal(t, "barcelona", city.Entries[0].ProcessedValue)
	assert.Equal(t, []string{"bcn", "barna"}, city.Entries[0].ProcessedSynonyms)
	assert.Empty(t, city.Entries[1].ProcessedSynonyms)
	assert.True(t, city.HasEntry("Madrid"))

	types.NumberEntity.ProcessEntries(strings.ToLower)
	assert.Empty(t, types.NumberEntity.Entries)
}

func TestIntent_ProcessTrainingSentences(t *testing.T) {
	city := types.NewEntity("city_entity", "", types.Entry("Madrid"))
	intent := &types.Intent{
		Name:              "weather_intent",
		TrainingSentences: []string{"what is the weather in CITY?", "weather in CITY"},
		Parameters:        []*types.IntentParameter{types.Param("city1", "CITY", city)},
	}
	intent.ProcessTrainingSentences(func(s string) string { return s })

	assert.Equal(t, []string{"what is the weather in CITY_ENTITY?", "weather in CITY_ENTITY"}, intent.ProcessedSentences)
	assert.Equal(t, []*types.Entity{city}, intent.Entities())
	assert.NotNil(t, intent.Parameter("city1"))
	assert.Nil(t, intent.Parameter("missing"))
}

func TestIntent_ToJSONHonoursFlags(t *testing.T) {
	intent := &types.Intent{
		Name:              "hello_intent",
		Description:       "greets",
		TrainingSentences: []string{"hi"},
		Parameters:        []*types.IntentParameter{types.Param("n", "NUM", types.NumberEntity)},
	}

	full := intent.ToJSON(true, true)
	assert.Equal(t, "greets", full.Description)
	assert.Equal(t, []string{"hi"}, full.TrainingSentences)
	assert.Equal(t, "NUM", full.Parameters[0].Fragment)

	bare := intent.ToJSON(false, false)
	assert.Empty(t, bare.Description)
	assert.Empty(t, bare.TrainingSentences)
	assert.Empty(t, bare.Parameters[0].Fragment)
	assert.Equal(t, types.BaseEntityNumber, bare.Parameters[0].Entity)
}

func TestFallbackPrediction(t *testing.T) {
	p := types.FallbackPrediction("blah")
	assert.True(t, p.Intent.IsFallback())
	assert.Equal(t, 1.0, p.Score)
	assert.Empty(t, p.MatchedParameters)
}

func TestFile_RoundTripThroughDisk(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	f, err := types.NewFileFromPath(src)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", f.Name)
	assert.Equal(t, "txt", f.Type)

	out := t.TempDir()
	path, err := f.Save(out)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = types.NewFileFromBase64("x", "txt", "%%%")
	assert.Error(t, err)

	def := types.NewFileFromBytes("", "", []byte("x"))
	assert.Equal(t, types.DefaultFileName, def.Name)
	assert.Equal(t, types.DefaultFileType, def.Type)
}

func TestMessage_Text(t *testing.T) {
	assert.Equal(t, "hi", types.NewMessage(types.MessageStr, "hi", true).Text())
	loc := types.NewMessage(types.MessageLocation, types.Location{Latitude: 1.5, Longitude: 2}, false)
	assert.JSONEq(t, `{"latitude":1.5,"longitude":2}`, loc.Text())

	mt, err := types.ParseMessageType("rag_answer")
	require.NoError(t, err)
	assert.Equal(t, types.MessageRAGAnswer, mt)
	_, err = types.ParseMessageType("video")
	assert.Error(t, err)
}
