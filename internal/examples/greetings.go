package examples

import (
	"context"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
)

func reply(text string) core.Body {
	return func(ctx context.Context, s *core.Session) error { return s.Reply(ctx, text) }
}

// Greetings is an agent that says hello, waits for a greeting and a goodbye
// and starts over.
func Greetings(a *core.Agent) error {
	s0, err := a.NewState("s0", core.Initial())
	if err != nil {
		return err
	}
	helloState, err := a.NewState("hello_state")
	if err != nil {
		return err
	}
	byeState, err := a.NewState("bye_state")
	if err != nil {
		return err
	}

	helloIntent, err := a.NewIntent("hello_intent", []string{"hello", "hi"})
	if err != nil {
		return err
	}
	byeIntent, err := a.NewIntent("bye_intent", []string{"bye", "goodbye", "see you"})
	if err != nil {
		return err
	}

	s0.SetBody(reply("Hello!"))
	if err := s0.WhenIntentMatchedGoTo(helloIntent, helloState); err != nil {
		return err
	}
	helloState.SetBody(reply("Hi! Say bye when you are done."))
	if err := helloState.WhenIntentMatchedGoTo(byeIntent, byeState); err != nil {
		return err
	}
	byeState.SetBody(reply("Bye! Let's start again..."))
	return byeState.GoTo(s0)
}
