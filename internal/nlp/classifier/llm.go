package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// ErrLLMNotFound is returned when the configured LLM is not registered.
var ErrLLMNotFound = errors.New("classifier: llm not found")

// LLMConfig configures the LLM classifier. Use NewLLMConfig to get the
// defaults (every Use* flag on).
type LLMConfig struct {
	LLMName               string
	UseIntentDescriptions bool
	UseTrainingSentences  bool
	UseEntityDescriptions bool
	UseEntitySynonyms     bool
}

// NewLLMConfig returns a configuration that sends everything it knows about
// the intents to the LLM named llmName.
func NewLLMConfig(llmName string) LLMConfig {
	return LLMConfig{
		LLMName:               llmName,
		UseIntentDescriptions: true,
		UseTrainingSentences:  true,
		UseEntityDescriptions: true,
		UseEntitySynonyms:     true,
	}
}

func (LLMConfig) classifierName() string { return "llm" }

// llmIntentAnswer is the reply expected for each intent.
type llmIntentAnswer struct {
	Score      float64        `json:"score" jsonschema:"confidence between 0 and 1"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"parameter name to the value found in the message"`
}

type llmAnswer map[string]llmIntentAnswer

// LLM asks a language model to classify the message and extract the
// intent parameters.
type LLM struct {
	cfg     LLMConfig
	intents []*types.Intent
	env     Environment
	logger  *slog.Logger

	intentsJSON  string
	entitiesJSON string
	schemaJSON   string
}

// NewLLM creates an LLM classifier.
func NewLLM(cfg LLMConfig, intents []*types.Intent, env Environment) *LLM {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{cfg: cfg, intents: intents, env: env, logger: logger}
}

// Name returns the name of the language model used.
func (c *LLM) Name() string { return c.cfg.LLMName }

// Train serializes the intents, their entities and the answer schema that
// are embedded in every prompt.
func (c *LLM) Train(_ context.Context) error {
	intents := make(map[string]types.IntentJSON, len(c.intents))
	entities := make(map[string]types.EntityJSON)
	for _, intent := range c.intents {
		intents[intent.Name] = intent.ToJSON(c.cfg.UseIntentDescriptions, c.cfg.UseTrainingSentences)
		for _, entity := range intent.Entities() {
			if _, ok := entities[entity.Name]; !ok {
				entities[entity.Name] = entity.ToJSON(c.cfg.UseEntityDescriptions, c.cfg.UseEntitySynonyms)
			}
		}
	}

	data, err := json.MarshalIndent(intents, "", "  ")
	if err != nil {
		return fmt.Errorf("classifier: failed to serialize intents: %w", err)
	}
	c.intentsJSON = string(data)
	if data, err = json.MarshalIndent(entities, "", "  "); err != nil {
		return fmt.Errorf("classifier: failed to serialize entities: %w", err)
	}
	c.entitiesJSON = string(data)

	schema, err := jsonschema.For[llmAnswer](nil)
	if err != nil {
		return fmt.Errorf("classifier: failed to build answer schema: %w", err)
	}
	if data, err = json.MarshalIndent(schema, "", "  "); err != nil {
		return fmt.Errorf("classifier: failed to serialize answer schema: %w", err)
	}
	c.schemaJSON = string(data)
	return nil
}

// Predict never fails on LLM errors: they are logged and no prediction is
// returned, which makes the engine fall back.
func (c *LLM) Predict(ctx context.Context, message string) ([]*types.IntentClassifierPrediction, error) {
	if c.schemaJSON == "" {
		return nil, ErrNotTrained
	}
	logger := c.logger.With(slog.String("llm", c.cfg.LLMName))

	model, ok := c.lookup()
	if !ok {
		logger.Error("llm intent classification failed", slog.Any("error", ErrLLMNotFound))
		return nil, nil
	}
	reply, err := model.Complete(ctx, c.prompt(message))
	if err != nil {
		logger.Error("llm intent classification failed", slog.Any("error", err))
		return nil, nil
	}
	answer, err := parseAnswer(reply)
	if err != nil {
		logger.Error("llm intent classification returned an invalid answer",
			slog.Any("error", err), slog.String("reply", reply))
		return nil, nil
	}
	return c.predictions(answer, message), nil
}

func (c *LLM) lookup() (llm.LLM, bool) {
	if c.env.LLM == nil {
		return nil, false
	}
	m, ok := c.env.LLM(c.cfg.LLMName)
	if !ok || m == nil {
		return nil, false
	}
	return m, true
}

func (c *LLM) predictions(answer llmAnswer, message string) []*types.IntentClassifierPrediction {
	var out []*types.IntentClassifierPrediction
	for _, intent := range c.intents {
		a, ok := answer[intent.Name]
		if !ok {
			continue
		}
		params := make([]*types.MatchedParameter, 0, len(intent.Parameters))
		for _, p := range intent.Parameters {
			params = append(params, types.NewMatchedParameter(p.Name, a.Parameters[p.Name], nil))
		}
		out = append(out, &types.IntentClassifierPrediction{
			Intent:            intent,
			Score:             min(max(a.Score, 0), 1),
			MatchedSentence:   message,
			MatchedParameters: params,
		})
	}
	return out
}

// parseAnswer decodes the outermost JSON object of reply, repairing it when
// it is not valid JSON.
func parseAnswer(reply string) (llmAnswer, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object in reply")
	}
	data := reply[start : end+1]

	var answer llmAnswer
	err := json.Unmarshal([]byte(data), &answer)
	if err == nil {
		return answer, nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return nil, err
	}
	fixed, err := jsonrepair.JSONRepair(data)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fixed), &answer); err != nil {
		return nil, err
	}
	return answer, nil
}

func (c *LLM) prompt(message string) string {
	var sb strings.Builder
	sb.WriteString(heredoc.Doc(`
		You are a helpful assistant. Your task is to recognize the intent of a sentence, together with its
		parameters (if any). You must solve 2 problems: text classification and named entity recognition.

		For each intent you will get:
	`))
	if c.cfg.UseIntentDescriptions {
		sb.WriteString("- A brief description of its purpose.\n")
	}
	if c.cfg.UseTrainingSentences {
		sb.WriteString(heredoc.Doc(`
			- A set of training sentences, examples of what the user message may look like. The message can be
			  similar to them in its words or in its meaning.
		`))
	}
	sb.WriteString("- Its parameters, each with a name")
	if c.cfg.UseTrainingSentences {
		sb.WriteString(heredoc.Doc(`
			, an entity and a fragment. The fragment is the part of the training sentences where the
			  parameter is expected. Upper-cased words in the training sentences (e.g. CITY) are fragments.
		`))
	} else {
		sb.WriteString(" and an entity.\n")
	}
	sb.WriteString("\nFor each entity you will get:\n")
	if c.cfg.UseEntityDescriptions {
		sb.WriteString("- A brief description of its purpose.\n")
	}
	sb.WriteString("- Its values (if any).\n")
	if c.cfg.UseEntitySynonyms {
		sb.WriteString("- The synonyms of each value. When you find a synonym in the message, return the value instead.\n")
	}
	sb.WriteString(heredoc.Docf(`

		Base entities have no values and match any value of their category: 'base.number' matches any
		number, 'base.date-time' any date or time.

		Notes:
		- A parameter can be explicit or implicit in the message. Add it to the result in both cases.
		- Never return a synonym as a parameter value; return the entity value it belongs to.
		- Only use the parameters defined for each intent.
		- An intent may be recognized even when some of its parameters are missing.
		- The message may not belong to any intent. Score every intent accordingly.
		- The language of the training data (ISO 639-1) is '%s'.

		Reply with a JSON object with one property per intent, following this JSON schema:

		%s

		Score every intent, not only the winner. A score of 1 means you are sure the intent is correct;
		below 0.5 means you believe it is not.

		Intent definitions:

		%s

		Entity definitions:

		%s

		Run the intent classification and named entity recognition on this sentence:

		'%s'

		Only write the JSON answer.
	`, c.env.Language, c.schemaJSON, c.intentsJSON, c.entitiesJSON, message))
	return sb.String()
}
