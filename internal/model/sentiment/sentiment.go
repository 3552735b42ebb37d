package sentiment

import (
	"fmt"
	"strings"
)

// Label 表示一次用户输入的情感极性。
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// Score maps a label onto the numeric scale used by trend analysis.
func (l Label) Score() int {
	switch l {
	case Positive:
		return 1
	case Negative:
		return -1
	default:
		return 0
	}
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	switch l {
	case Positive, Negative, Neutral:
		return true
	default:
		return false
	}
}

// ParseLabel accepts the label in any case, with surrounding whitespace.
func ParseLabel(raw string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive":
		return Positive, true
	case "negative":
		return Negative, true
	case "neutral":
		return Neutral, true
	default:
		return "", false
	}
}

// Result is the classifier output for a single user turn.
type Result struct {
	Label      Label   `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Validate checks the label and that confidence lies in [0,1].
func (r Result) Validate() error {
	if !r.Label.Valid() {
		return fmt.Errorf("unknown sentiment label %q", r.Label)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be 0-1, got %f", r.Confidence)
	}
	return nil
}

// ClampConfidence forces a producer-supplied confidence into [0,1].
func ClampConfidence(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Trend describes how sentiment moved over the recent turns.
type Trend string

const (
	Improving Trend = "improving"
	Declining Trend = "declining"
	Stable    Trend = "stable"
)
