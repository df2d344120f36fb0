// Package nlp turns user messages into intent predictions. The Engine owns
// the text processor, the NER and one intent classifier per state, plus the
// language-model collaborators used by classifiers and state bodies.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	_ "time/tzdata" // nlp.timezone must resolve without a system zoneinfo

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/ner"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/text"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/rag"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Errors returned by the engine.
var (
	ErrNotInitialized = errors.New("nlp: engine not initialized")
	ErrNoSpeechToText = errors.New("nlp: no speech-to-text collaborator")
	ErrNoRAG          = errors.New("nlp: no rag collaborator")
)

// StateSpec is what the engine needs to know about a state.
type StateSpec struct {
	Name    string
	Intents []*types.Intent
	// Classifier configuration; nil uses the engine default.
	Config classifier.Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow replaces the clock used to resolve relative date-times.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine runs the NLP pipeline of an agent.
type Engine struct {
	props  *config.Properties
	logger *slog.Logger
	now    func() time.Time

	processor   *text.Processor
	ner         *ner.Simple
	threshold   float64
	classifiers map[string]classifier.Classifier

	mu     sync.RWMutex
	llms   map[string]llm.LLM
	speech llm.SpeechToText
	rag    *rag.RAG
}

// NewEngine creates an engine reading its settings from props.
func NewEngine(props *config.Properties, opts ...Option) *Engine {
	e := &Engine{
		props:       props,
		logger:      slog.Default(),
		now:         time.Now,
		classifiers: make(map[string]classifier.Classifier),
		llms:        make(map[string]llm.LLM),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize reads the NLP properties and creates one classifier per state
// with intents. States without intents get none and always fall back.
func (e *Engine) Initialize(states []StateSpec, defaultConfig classifier.Config) error {
	language := e.props.String(config.NLPLanguage)
	preProcessing := e.props.Bool(config.NLPPreProcessing)
	e.threshold = e.props.Float(config.NLPIntentThreshold)

	loc, err := time.LoadLocation(e.props.String(config.NLPTimezone))
	if err != nil {
		e.logger.Warn("unknown timezone, using UTC",
			slog.String("timezone", e.props.String(config.NLPTimezone)), slog.Any("error", err))
		loc = time.UTC
	}

	e.processor = text.New(language, preProcessing)
	e.ner = ner.NewSimple(ner.Options{
		Language:      e.processor.Language(),
		PreProcessing: e.processor.Stems(),
		Location:      loc,
		Now:           e.now,
		Logger:        e.logger,
	})

	env := classifier.Environment{
		NER:       e.ner,
		Processor: e.processor,
		Language:  e.processor.Language(),
		LLM:       e.LLM,
		Logger:    e.logger,
	}
	e.classifiers = make(map[string]classifier.Classifier, len(states))
	for _, s := range states {
		if len(s.Intents) == 0 {
			continue
		}
		cfg := s.Config
		if cfg == nil {
			cfg = defaultConfig
		}
		c, err := classifier.New(cfg, s.Intents, env)
		if err != nil {
			return fmt.Errorf("nlp: state %q: %w", s.Name, err)
		}
		e.classifiers[s.Name] = c
	}
	return nil
}

// Train processes the entity entries and intent training sentences, then
// trains every classifier.
func (e *Engine) Train(ctx context.Context, states []StateSpec, entities []*types.Entity, intents []*types.Intent) error {
	if e.processor == nil {
		return ErrNotInitialized
	}
	e.ner.Train(entities, e.processor.Process)
	for _, intent := range intents {
		intent.ProcessTrainingSentences(e.processor.Process)
	}
	for _, s := range states {
		c, ok := e.classifiers[s.Name]
		if !ok {
			e.logger.Info("intent classifier not trained (no intents found)", slog.String("state", s.Name))
			continue
		}
		if err := c.Train(ctx); err != nil {
			return fmt.Errorf("nlp: failed to train classifier of state %q: %w", s.Name, err)
		}
		e.logger.Info("intent classifier trained", slog.String("state", s.Name))
	}
	return nil
}

// Process returns the normalized form of s.
func (e *Engine) Process(s string) string {
	if e.processor == nil {
		return s
	}
	return e.processor.Process(s)
}

// NER returns the engine NER, nil before Initialize.
func (e *Engine) NER() *ner.Simple { return e.ner }

// PredictIntent classifies message in the given state. It never fails: a
// state without intents, a classifier error or a best score under
// nlp.intent_threshold all give the fallback prediction.
func (e *Engine) PredictIntent(ctx context.Context, state, message string) *types.IntentClassifierPrediction {
	c, ok := e.classifiers[state]
	if !ok {
		return types.FallbackPrediction(message)
	}
	predictions, err := c.Predict(ctx, message)
	if err != nil {
		e.logger.Error("intent prediction failed",
			slog.String("state", state), slog.Any("error", err))
		return types.FallbackPrediction(message)
	}
	return Best(predictions, e.threshold, message)
}

// ClassifierName returns the name of the classifier of state, "None" when
// the state has none.
func (e *Engine) ClassifierName(state string) string {
	if c, ok := e.classifiers[state]; ok {
		return c.Name()
	}
	return "None"
}

// Best returns the highest scored prediction (the first one on ties), or the
// fallback prediction when there is none or its score is under threshold.
func Best(predictions []*types.IntentClassifierPrediction, threshold float64, message string) *types.IntentClassifierPrediction {
	var best *types.IntentClassifierPrediction
	for _, p := range predictions {
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	if best == nil || best.Score < threshold {
		return types.FallbackPrediction(message)
	}
	return best
}

// RegisterLLM makes model available to classifiers and bodies under its name.
func (e *Engine) RegisterLLM(model llm.LLM) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.llms[model.Name()]; ok {
		e.logger.Warn("replacing registered llm", slog.String("llm", model.Name()))
	}
	e.llms[model.Name()] = model
}

// LLM returns the model registered under name.
func (e *Engine) LLM(name string) (llm.LLM, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.llms[name]
	return m, ok
}

// SetSpeechToText sets the speech-to-text collaborator.
func (e *Engine) SetSpeechToText(s llm.SpeechToText) {
	e.mu.Lock()
	e.speech = s
	e.mu.Unlock()
}

// SpeechToText transcribes audio.
func (e *Engine) SpeechToText(ctx context.Context, audio []byte) (string, error) {
	e.mu.RLock()
	s := e.speech
	e.mu.RUnlock()
	if s == nil {
		return "", ErrNoSpeechToText
	}
	return s.Transcribe(ctx, audio, "audio.wav")
}

// SetRAG sets the retrieval-augmented generation collaborator.
func (e *Engine) SetRAG(r *rag.RAG) {
	e.mu.Lock()
	e.rag = r
	e.mu.Unlock()
}

// RAG returns the RAG collaborator.
func (e *Engine) RAG() (*rag.RAG, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.rag == nil {
		return nil, ErrNoRAG
	}
	return e.rag, nil
}
