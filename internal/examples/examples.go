// Package examples holds ready-made agents used by the CLI and as
// documentation of the agent API.
package examples

import (
	"fmt"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
)

// Builder declares the states, intents and entities of an agent.
type Builder func(a *core.Agent) error

// Names lists the agents Lookup knows.
func Names() []string {
	return []string{"greetings", "llm", "weather"}
}

// Lookup returns the builder of the example agent name. The llm agent
// creates its language model from the agent properties with provider.
func Lookup(name, provider string) (Builder, error) {
	switch name {
	case "greetings":
		return Greetings, nil
	case "weather":
		return Weather(RandomForecast), nil
	case "llm":
		return func(a *core.Agent) error {
			model, err := llm.FromProperties(provider, "", a.Properties(), a.Logger())
			if err != nil {
				return err
			}
			return LLMAgent(model)(a)
		}, nil
	}
	return nil, fmt.Errorf("unknown example agent %q, expected one of %v", name, Names())
}
