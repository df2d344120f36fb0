package types

import "strings"

// IntentParameter binds a fragment of an intent's training sentences to an entity.
type IntentParameter struct {
	Name     string  `json:"name"`
	Fragment string  `json:"fragment"`
	Entity   *Entity `json:"-"`
}

// Param is a shorthand for building an IntentParameter.
func Param(name, fragment string, entity *Entity) *IntentParameter {
	return &IntentParameter{Name: name, Fragment: fragment, Entity: entity}
}

// Intent is a named class of user utterances.
type Intent struct {
	Name              string             `json:"name"`
	TrainingSentences []string           `json:"training_sentences"`
	Parameters        []*IntentParameter `json:"parameters,omitempty"`
	Description       string             `json:"description,omitempty"`

	// Filled at training time, aligned with TrainingSentences.
	ProcessedSentences []string `json:"-"`
}

// FallbackIntent is returned when no intent is matched or the best score is
// below the configured threshold.
var FallbackIntent = &Intent{Name: "fallback_intent"}

// IsFallback reports whether the intent is the fallback intent.
func (i *Intent) IsFallback() bool {
	return i != nil && i.Name == FallbackIntent.Name
}

// Parameter returns the parameter with the given name, or nil.
func (i *Intent) Parameter(name string) *IntentParameter {
	for _, p := range i.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Entities returns the distinct entities referenced by the intent's parameters,
// in declaration order.
func (i *Intent) Entities() []*Entity {
	var out []*Entity
	seen := make(map[string]bool)
	for _, p := range i.Parameters {
		if p.Entity == nil || seen[p.Entity.Name] {
			continue
		}
		seen[p.Entity.Name] = true
		out = append(out, p.Entity)
	}
	return out
}

// NERTrainingSentence replaces every parameter fragment in sentence with the
// upper-cased name of the parameter's entity (whole-word, first occurrence).
func (i *Intent) NERTrainingSentence(sentence string) string {
	for _, p := range i.Parameters {
		if p.Entity == nil || p.Fragment == "" {
			continue
		}
		sentence = ReplaceWord(sentence, p.Fragment, strings.ToUpper(p.Entity.Name))
	}
	return sentence
}

// ProcessTrainingSentences fills ProcessedSentences using process.
func (i *Intent) ProcessTrainingSentences(process func(string) string) {
	i.ProcessedSentences = make([]string, 0, len(i.TrainingSentences))
	for _, sentence := range i.TrainingSentences {
		i.ProcessedSentences = append(i.ProcessedSentences, process(i.NERTrainingSentence(sentence)))
	}
}

// IntentJSON is the serialized form of an intent handed to LLMs.
type IntentJSON struct {
	Description       string                `json:"description,omitempty"`
	TrainingSentences []string              `json:"training_sentences,omitempty"`
	Parameters        []IntentParameterJSON `json:"parameters"`
}

// IntentParameterJSON is the serialized form of an intent parameter.
type IntentParameterJSON struct {
	Name     string `json:"name"`
	Fragment string `json:"fragment,omitempty"`
	Entity   string `json:"entity"`
}

// ToJSON returns the LLM-facing description of the intent.
func (i *Intent) ToJSON(withDescription, withSentences bool) IntentJSON {
	out := IntentJSON{Parameters: []IntentParameterJSON{}}
	if withDescription {
		out.Description = i.Description
	}
	if withSentences {
		out.TrainingSentences = i.TrainingSentences
	}
	for _, p := range i.Parameters {
		j := IntentParameterJSON{Name: p.Name}
		if withSentences {
			j.Fragment = p.Fragment
		}
		if p.Entity != nil {
			j.Entity = p.Entity.Name
		}
		out.Parameters = append(out.Parameters, j)
	}
	return out
}
