package domain

import "strings"

// RecognitionResult is the outcome of one listen turn.
// It is produced by the speech collaborator and never mutated afterwards.
type RecognitionResult struct {
	Utterance      string          `json:"utterance"`
	Confidence     *float64        `json:"confidence,omitempty"`
	Interpretation *Interpretation `json:"interpretation,omitempty"`
}

// Interpretation is the structured NLU payload attached to a recognition.
type Interpretation struct {
	TopIntent string   `json:"top_intent,omitempty"`
	Intents   []Intent `json:"intents,omitempty"`
	Entities  []Entity `json:"entities,omitempty"`
}

// Intent is a classified conversational goal.
type Intent struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Entity is a labeled span of recognized text.
type Entity struct {
	Category   string  `json:"category"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Entity returns the text of the first entity of the given category.
// It is safe to call on a nil Interpretation.
func (i *Interpretation) Entity(category string) (string, bool) {
	if i == nil {
		return "", false
	}
	for _, e := range i.Entities {
		if strings.EqualFold(e.Category, category) && e.Text != "" {
			return e.Text, true
		}
	}
	return "", false
}

// Intent returns the top intent label, or "" when absent.
func (i *Interpretation) Intent() string {
	if i == nil {
		return ""
	}
	if i.TopIntent != "" {
		return i.TopIntent
	}
	if len(i.Intents) > 0 {
		return i.Intents[0].Category
	}
	return ""
}

// Text returns the utterance, or "" for a nil result.
func (r *RecognitionResult) Text() string {
	if r == nil {
		return ""
	}
	return r.Utterance
}

// ConfidenceOr returns the confidence score, or def when the collaborator did not report one.
func (r *RecognitionResult) ConfidenceOr(def float64) float64 {
	if r == nil || r.Confidence == nil {
		return def
	}
	return *r.Confidence
}
