package examples

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Previous chat messages sent with each question.
const llmHistory = 10

var llmTopics = []struct{ name, description string }{
	{"hello_intent", "The user greets you"},
	{"maths_intent", "The user asks something about mathematics"},
	{"physics_intent", "The user asks something about physics"},
	{"literature_intent", "The user asks something about literature"},
	{"psychology_intent", "The user asks something about psychology"},
}

// LLMAgent is an agent that classifies intents and answers questions with
// model.
func LLMAgent(model llm.LLM) Builder {
	return func(a *core.Agent) error {
		a.RegisterLLM(model)
		cfg := classifier.NewLLMConfig(model.Name())
		cfg.UseTrainingSentences = false
		cfg.UseEntitySynonyms = false
		a.SetDefaultClassifierConfig(cfg)

		greetingsState, err := a.NewState("greetings_state", core.Initial())
		if err != nil {
			return err
		}
		answerState, err := a.NewState("answer_state")
		if err != nil {
			return err
		}

		a.SetGlobalFallbackBody(func(ctx context.Context, s *core.Session) error {
			answer, err := model.Complete(ctx, heredoc.Docf(`
				You are being used within an intent-based agent. The agent triggered the fallback mechanism
				because no intent was recognized from the user input. Generate a message similar to
				'Sorry, I don't know the answer', based on the user message: %s`, s.Message()))
			if err != nil {
				return err
			}
			return s.Reply(ctx, answer)
		})
		greetingsState.SetBody(func(ctx context.Context, s *core.Session) error {
			answer, err := model.Complete(ctx, "You are a helpful assistant. Start the conversation with a short (2-15 words) greetings message. Make it original.")
			if err != nil {
				return err
			}
			return s.Reply(ctx, answer)
		})
		answerState.SetBody(func(ctx context.Context, s *core.Session) error {
			answer, err := model.Chat(ctx, llm.Request{
				System: "You are a helpful assistant. Answer the question of the user.",
				Turns:  turns(s.ChatHistory(ctx, llmHistory)),
			})
			if err != nil {
				return err
			}
			return s.Reply(ctx, answer)
		})

		for _, topic := range llmTopics {
			intent := &types.Intent{Name: topic.name, Description: topic.description}
			if err := a.AddIntent(intent); err != nil {
				return err
			}
			dest := answerState
			if topic.name == "hello_intent" {
				dest = greetingsState
			}
			if err := greetingsState.WhenIntentMatchedGoTo(intent, dest); err != nil {
				return fmt.Errorf("llm agent: %w", err)
			}
		}
		return answerState.GoTo(greetingsState)
	}
}

func turns(history []types.Message) []llm.Turn {
	out := make([]llm.Turn, 0, len(history))
	for _, m := range history {
		role := llm.RoleAssistant
		if m.IsUser {
			role = llm.RoleUser
		}
		out = append(out, llm.Turn{Role: role, Content: m.Text()})
	}
	return out
}
