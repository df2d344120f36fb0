package classifier

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// SimpleConfig configures the Simple classifier.
type SimpleConfig struct {
	NumWords                  int     // Max number of words kept in the word index
	NumEpochs                 int     // Training epochs
	EmbeddingDim              int     // Embedding dimensions
	InputMaxNumTokens         int     // Sequence length after padding or truncation
	DiscardOOVSentences       bool    // All-OOV messages score 0 for every intent
	CheckExactPredictionMatch bool    // Messages equal to a training sentence score 1
	ActivationLastLayer       string  // sigmoid or softmax
	ActivationHiddenLayers    string  // tanh, relu, sigmoid or linear
	LearningRate              float64 // Adam learning rate
	BatchSize                 int
	Lower                     bool
	Seed                      int64
}

// DefaultSimpleConfig returns the default Simple classifier configuration.
func DefaultSimpleConfig() SimpleConfig {
	return SimpleConfig{
		NumWords:                  1000,
		NumEpochs:                 300,
		EmbeddingDim:              128,
		InputMaxNumTokens:         15,
		DiscardOOVSentences:       true,
		CheckExactPredictionMatch: true,
		ActivationLastLayer:       ActivationSigmoid,
		ActivationHiddenLayers:    ActivationTanh,
		LearningRate:              0.001,
		BatchSize:                 32,
		Lower:                     true,
		Seed:                      42,
	}
}

func (SimpleConfig) classifierName() string { return "simple" }

// Simple is a small neural intent classifier trained on the state's
// training sentences.
type Simple struct {
	cfg     SimpleConfig
	intents []*types.Intent
	env     Environment
	logger  *slog.Logger

	tok       *tokenizer
	net       *network
	sequences [][]int
	labels    []int
}

// Name returns "SimpleClassifier".
func (c *Simple) Name() string { return "SimpleClassifier" }

// NewSimple creates an untrained Simple classifier. Zero fields of cfg take
// their default value.
func NewSimple(cfg SimpleConfig, intents []*types.Intent, env Environment) *Simple {
	def := DefaultSimpleConfig()
	if cfg.NumWords <= 0 {
		cfg.NumWords = def.NumWords
	}
	if cfg.NumEpochs <= 0 {
		cfg.NumEpochs = def.NumEpochs
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = def.EmbeddingDim
	}
	if cfg.InputMaxNumTokens <= 0 {
		cfg.InputMaxNumTokens = def.InputMaxNumTokens
	}
	if cfg.ActivationLastLayer == "" {
		cfg.ActivationLastLayer = def.ActivationLastLayer
	}
	if cfg.ActivationHiddenLayers == "" {
		cfg.ActivationHiddenLayers = def.ActivationHiddenLayers
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Simple{cfg: cfg, intents: intents, env: env, logger: logger}
}

// Train fits the word index and the network. Intent training sentences
// must already be processed.
func (c *Simple) Train(ctx context.Context) error {
	var sentences []string
	var labels []int
	for i, intent := range c.intents {
		if intent.ProcessedSentences == nil {
			intent.ProcessTrainingSentences(c.process)
		}
		for _, s := range intent.ProcessedSentences {
			sentences = append(sentences, s)
			labels = append(labels, i)
		}
	}

	c.tok = newTokenizer(c.cfg.NumWords, c.cfg.Lower)
	c.tok.fit(sentences)
	c.sequences = make([][]int, len(sentences))
	for i, s := range sentences {
		c.sequences[i] = pad(c.tok.sequence(s), c.cfg.InputMaxNumTokens)
	}
	c.labels = labels

	if err := ctx.Err(); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(c.cfg.Seed))
	c.net = newNetwork(rng, c.cfg.NumWords, c.cfg.EmbeddingDim, c.cfg.InputMaxNumTokens,
		len(c.intents), c.cfg.ActivationHiddenLayers, c.cfg.ActivationLastLayer)
	if len(sentences) > 0 {
		c.net.fit(rng, c.sequences, labels, len(c.intents), c.cfg.NumEpochs, c.cfg.BatchSize, c.cfg.LearningRate)
	}
	c.logger.Debug("simple classifier trained",
		slog.Int("intents", len(c.intents)),
		slog.Int("sentences", len(sentences)),
		slog.Int("vocabulary", len(c.tok.wordIndex)))
	return nil
}

func (c *Simple) process(s string) string {
	if c.env.Processor == nil {
		return s
	}
	return c.env.Processor.Process(s)
}

// Predict runs NER on the processed message and scores every intent on its
// NER sentence.
func (c *Simple) Predict(ctx context.Context, message string) ([]*types.IntentClassifierPrediction, error) {
	if c.net == nil {
		return nil, ErrNotTrained
	}
	processed := c.process(message)

	nerPred := nerPredict(c.env, c.intents, processed)
	index := make(map[*types.Intent]int, len(c.intents))
	for i, intent := range c.intents {
		index[intent] = i
	}

	var out []*types.IntentClassifierPrediction
	for _, group := range nerPred.Sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores := c.scores(group.Sentence)
		for _, intent := range group.Intents {
			out = append(out, &types.IntentClassifierPrediction{
				Intent:            intent,
				Score:             scores[index[intent]],
				MatchedSentence:   group.Sentence,
				MatchedParameters: nerPred.Parameters[intent],
			})
		}
	}
	// Declaration order, so that ties resolve to the first declared intent.
	sort.SliceStable(out, func(i, j int) bool { return index[out[i].Intent] < index[out[j].Intent] })
	return out, nil
}

func (c *Simple) scores(sentence string) []float64 {
	raw := c.tok.sequence(sentence)
	if c.cfg.DiscardOOVSentences && allOOV(raw) {
		return make([]float64, len(c.intents))
	}
	seq := pad(raw, c.cfg.InputMaxNumTokens)
	if c.cfg.CheckExactPredictionMatch {
		for i, training := range c.sequences {
			if equalSeq(seq, training) {
				scores := make([]float64, len(c.intents))
				scores[c.labels[i]] = 1
				return scores
			}
		}
	}
	return c.net.predict(seq)
}
