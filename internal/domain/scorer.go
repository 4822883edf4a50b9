package domain

import "context"

type Label string

const (
	LabelPositive Label = "positive"
	LabelNeutral  Label = "neutral"
	LabelNegative Label = "negative"
)

// Score is the classification of one message.
type Score struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NeutralScore is the result used whenever a scorer cannot produce one.
var NeutralScore = Score{Label: LabelNeutral, Confidence: 0}

// Scorer classifies message text. Implementations must not fail: internal
// errors map to NeutralScore.
type Scorer interface {
	Score(ctx context.Context, text string) Score
}

// Valid reports whether l is one of the three known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelPositive, LabelNeutral, LabelNegative:
		return true
	default:
		return false
	}
}
