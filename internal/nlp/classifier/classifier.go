// Package classifier predicts the intent of a user message among the intents
// of a state.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/ner"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/text"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// ErrNoIntents is returned when a classifier is built for a state without
// intents.
var ErrNoIntents = errors.New("classifier: no intents to classify")

// Classifier scores the intents of one state for a message.
type Classifier interface {
	// Name identifies the classifier in monitoring records.
	Name() string
	Train(ctx context.Context) error
	// Predict returns one prediction per candidate intent. message is the
	// raw user message.
	Predict(ctx context.Context, message string) ([]*types.IntentClassifierPrediction, error)
}

// Config selects and configures a classifier implementation.
type Config interface {
	classifierName() string
}

// Environment is what a classifier needs from the NLP engine.
type Environment struct {
	NER       *ner.Simple
	Processor *text.Processor
	Language  string
	// LLM looks up a language model by name.
	LLM    func(name string) (llm.LLM, bool)
	Logger *slog.Logger
}

// New builds the classifier described by cfg for intents.
func New(cfg Config, intents []*types.Intent, env Environment) (Classifier, error) {
	if len(intents) == 0 {
		return nil, ErrNoIntents
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	switch c := cfg.(type) {
	case nil:
		return NewSimple(DefaultSimpleConfig(), intents, env), nil
	case SimpleConfig:
		return NewSimple(c, intents, env), nil
	case *SimpleConfig:
		return NewSimple(*c, intents, env), nil
	case LLMConfig:
		return NewLLM(c, intents, env), nil
	case *LLMConfig:
		return NewLLM(*c, intents, env), nil
	}
	return nil, fmt.Errorf("classifier: unknown configuration %q", cfg.classifierName())
}

// ErrNotTrained is returned by Predict before Train.
var ErrNotTrained = errors.New("classifier: not trained")

func nerPredict(env Environment, intents []*types.Intent, message string) *ner.Prediction {
	n := env.NER
	if n == nil {
		n = ner.NewSimple(ner.Options{Language: env.Language, Logger: env.Logger})
	}
	return n.Predict(intents, message)
}
