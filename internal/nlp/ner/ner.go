// Package ner finds entity values in user messages. Custom entities are
// matched against their entries and synonyms; base entities (date-time,
// number) by pattern.
package ner

import (
	"log/slog"
	"time"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// SentenceIntents groups the intents whose NER rewrite of a message is the
// same sentence.
type SentenceIntents struct {
	Sentence string
	Intents  []*types.Intent
}

// Prediction is the NER result for every intent of a state.
type Prediction struct {
	// Matched parameters per intent. Every declared parameter is present,
	// with a nil value when it was not found.
	Parameters map[*types.Intent][]*types.MatchedParameter
	// Distinct NER sentences in first-seen order.
	Sentences []*SentenceIntents
}

func newPrediction() *Prediction {
	return &Prediction{Parameters: make(map[*types.Intent][]*types.MatchedParameter)}
}

func (p *Prediction) add(intent *types.Intent, sentence string, params []*types.MatchedParameter) {
	p.Parameters[intent] = params
	for _, s := range p.Sentences {
		if s.Sentence == sentence {
			s.Intents = append(s.Intents, intent)
			return
		}
	}
	p.Sentences = append(p.Sentences, &SentenceIntents{Sentence: sentence, Intents: []*types.Intent{intent}})
}

// SentenceOf returns the NER sentence computed for intent.
func (p *Prediction) SentenceOf(intent *types.Intent) (string, bool) {
	for _, s := range p.Sentences {
		for _, i := range s.Intents {
			if i == intent {
				return s.Sentence, true
			}
		}
	}
	return "", false
}

// Options configures a Simple NER.
type Options struct {
	Language      string
	PreProcessing bool
	Location      *time.Location   // default: UTC
	Now           func() time.Time // default: time.Now
	Logger        *slog.Logger
}

// Simple is an exact-match NER: custom entity values are only found when
// they appear verbatim (case-insensitive, whole word) in the message.
type Simple struct {
	opts    Options
	numbers *NumberParser
	dates   *DateTimeParser
	logger  *slog.Logger
}

// NewSimple creates a Simple NER.
func NewSimple(opts Options) *Simple {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Simple{
		opts:    opts,
		numbers: NewNumberParser(opts.Language),
		dates:   NewDateTimeParser(opts.Language, opts.Location),
		logger:  opts.Logger,
	}
}

// Train stores the processed form of every custom entity entry.
func (n *Simple) Train(entities []*types.Entity, process func(string) string) {
	for _, e := range entities {
		if e.Base {
			continue
		}
		e.ProcessEntries(process)
	}
}

// Predict runs NER on message for each intent.
func (n *Simple) Predict(intents []*types.Intent, message string) *Prediction {
	prediction := newPrediction()
	now := n.opts.Now().In(n.opts.Location).Truncate(time.Second)

	for _, intent := range intents {
		sentence, matches := matchCustomEntities(intent, message, n.opts.PreProcessing)

		for _, base := range types.OrderedBaseEntities {
			for _, param := range intent.Parameters {
				if param.Entity == nil || !param.Entity.Base || param.Entity.Name != base {
					continue
				}
				rewritten, frag, info, ok := n.baseEntity(base, sentence, now)
				if !ok {
					continue
				}
				matches = append(matches, types.NewMatchedParameter(param.Name, frag, info))
				sentence = types.ReplaceWord(rewritten, frag, upperName(param.Entity))
			}
		}

		matched := make(map[string]bool, len(matches))
		for _, m := range matches {
			matched[m.Name] = true
		}
		for _, param := range intent.Parameters {
			if !matched[param.Name] {
				matches = append(matches, types.NewMatchedParameter(param.Name, nil, nil))
			}
		}
		prediction.add(intent, sentence, matches)
	}
	return prediction
}

func (n *Simple) baseEntity(name, sentence string, now time.Time) (string, string, map[string]any, bool) {
	switch name {
	case types.BaseEntityDateTime:
		res, ok := n.dates.Find(sentence, now)
		if !ok {
			return "", "", nil, false
		}
		return res.Sentence, res.Value, res.Info, true
	case types.BaseEntityNumber:
		rewritten, frag, ok := n.numbers.Find(sentence)
		if !ok {
			return "", "", nil, false
		}
		return rewritten, frag, map[string]any{}, true
	}
	// base.any never matches
	return "", "", nil, false
}
