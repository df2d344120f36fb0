package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
)

type adaptingLLM struct {
	reqs []llm.Request
}

func (m *adaptingLLM) Name() string  { return "adapter" }
func (m *adaptingLLM) Model() string { return "adapter-model" }
func (m *adaptingLLM) Complete(context.Context, string) (string, error) {
	return "", nil
}
func (m *adaptingLLM) Chat(_ context.Context, req llm.Request) (string, error) {
	m.reqs = append(m.reqs, req)
	return "Hey there, friend!", nil
}

func TestUserAdaptationProcessor(t *testing.T) {
	ctx := context.Background()
	g := greetingsAgent(t)
	model := &adaptingLLM{}
	g.RegisterLLM(model)
	adapt := core.NewUserAdaptationProcessor("adapter", "You are a greeting agent.")
	require.NoError(t, g.AddProcessor(adapt))
	require.NoError(t, g.Train(ctx))

	plain, err := g.GetOrCreateSession(ctx, "plain", nil)
	require.NoError(t, err)
	adapted, err := g.GetOrCreateSession(ctx, "adapted", nil)
	require.NoError(t, err)
	adapt.AddUserModel(adapted, map[string]any{"age": 8})

	require.NoError(t, g.ReceiveMessage(ctx, "plain", "hello"))
	require.NoError(t, g.ReceiveMessage(ctx, "adapted", "hello"))

	assert.Equal(t, []string{"Hi!"}, agentTexts(plain.ChatHistory(ctx, 0)), "users without a profile are left alone")
	assert.Equal(t, []string{"Hey there, friend!"}, agentTexts(adapted.ChatHistory(ctx, 0)))

	require.Len(t, model.reqs, 1)
	assert.Contains(t, model.reqs[0].System, "You are a greeting agent.")
	assert.Contains(t, model.reqs[0].System, "map[age:8]")
	require.Len(t, model.reqs[0].Turns, 1)
	assert.Contains(t, model.reqs[0].Turns[0].Content, "You need to adapt this message: Hi!")
}
