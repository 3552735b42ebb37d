// Package strategy maps the current sentiment and its trend onto a reply tone.
package strategy

import "github.com/zhouzirui/moodchat/backend/internal/model/sentiment"

// Strategy is the tone directive handed to the response generator.
type Strategy string

const (
	Empathetic  Strategy = "empathetic"
	Encouraging Strategy = "encouraging"
	Cheerful    Strategy = "cheerful"
	Neutral     Strategy = "neutral"
)

type rule struct {
	matches  func(sentiment.Label, sentiment.Trend) bool
	strategy Strategy
}

// Order matters: the first matching rule wins.
// (negative, improving) intentionally falls through to Neutral.
var rules = []rule{
	{
		matches: func(l sentiment.Label, t sentiment.Trend) bool {
			return l == sentiment.Negative && t == sentiment.Declining
		},
		strategy: Empathetic,
	},
	{
		matches: func(l sentiment.Label, t sentiment.Trend) bool {
			return l == sentiment.Negative && t == sentiment.Stable
		},
		strategy: Encouraging,
	},
	{
		matches: func(l sentiment.Label, _ sentiment.Trend) bool {
			return l == sentiment.Positive
		},
		strategy: Cheerful,
	},
}

// Select returns the strategy for a label and trend. It is total: any combination
// not covered by a rule, including unknown values, yields Neutral.
func Select(label sentiment.Label, trend sentiment.Trend) Strategy {
	for _, r := range rules {
		if r.matches(label, trend) {
			return r.strategy
		}
	}
	return Neutral
}

// All lists every strategy in a stable order.
func All() []Strategy {
	return []Strategy{Empathetic, Encouraging, Cheerful, Neutral}
}
