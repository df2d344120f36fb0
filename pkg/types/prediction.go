package types

// MatchedParameter is an intent parameter found (or not) in a user message.
// A nil Value means the parameter was expected but not filled.
type MatchedParameter struct {
	Name  string         `json:"name"`
	Value any            `json:"value"`
	Info  map[string]any `json:"info"`
}

// NewMatchedParameter builds a MatchedParameter with a non-nil info map.
func NewMatchedParameter(name string, value any, info map[string]any) *MatchedParameter {
	if info == nil {
		info = map[string]any{}
	}
	return &MatchedParameter{Name: name, Value: value, Info: info}
}

// IntentClassifierPrediction is the score of one candidate intent for a message.
type IntentClassifierPrediction struct {
	Intent            *Intent             `json:"-"`
	Score             float64             `json:"score"`
	MatchedSentence   string              `json:"matched_sentence"`
	MatchedParameters []*MatchedParameter `json:"matched_parameters"`
}

// FallbackPrediction returns a prediction of the fallback intent with score 1.
func FallbackPrediction(message string) *IntentClassifierPrediction {
	return &IntentClassifierPrediction{
		Intent:            FallbackIntent,
		Score:             1,
		MatchedSentence:   message,
		MatchedParameters: []*MatchedParameter{},
	}
}

// Parameter returns the matched parameter with the given name, or nil.
func (p *IntentClassifierPrediction) Parameter(name string) *MatchedParameter {
	for _, mp := range p.MatchedParameters {
		if mp.Name == name {
			return mp
		}
	}
	return nil
}
