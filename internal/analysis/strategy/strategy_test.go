package strategy

import (
	"testing"

	"github.com/zhouzirui/moodchat/backend/internal/model/sentiment"
)

func TestSelectFullMatrix(t *testing.T) {
	want := map[sentiment.Label]map[sentiment.Trend]Strategy{
		sentiment.Negative: {
			sentiment.Declining: Empathetic,
			sentiment.Stable:    Encouraging,
			sentiment.Improving: Neutral,
		},
		sentiment.Positive: {
			sentiment.Declining: Cheerful,
			sentiment.Stable:    Cheerful,
			sentiment.Improving: Cheerful,
		},
		sentiment.Neutral: {
			sentiment.Declining: Neutral,
			sentiment.Stable:    Neutral,
			sentiment.Improving: Neutral,
		},
	}

	for label, byTrend := range want {
		for trend, expected := range byTrend {
			if got := Select(label, trend); got != expected {
				t.Fatalf("Select(%s, %s) = %s, want %s", label, trend, got, expected)
			}
		}
	}
}

func TestSelectUnknownInputsFallBackToNeutral(t *testing.T) {
	if got := Select("", ""); got != Neutral {
		t.Fatalf("expected neutral, got %s", got)
	}
	if got := Select(sentiment.Negative, "sideways"); got != Neutral {
		t.Fatalf("expected neutral, got %s", got)
	}
}

func TestStrategyPrompts(t *testing.T) {
	for _, s := range All() {
		prompt := s.Prompt()
		if len(prompt) <= 50 {
			t.Fatalf("%s: prompt too short: %q", s, prompt)
		}
		if s.Describe() == "" {
			t.Fatalf("%s: missing description", s)
		}
	}

	if Strategy("unknown").Prompt() != Neutral.Prompt() {
		t.Fatal("unknown strategy should use the neutral prompt")
	}
}
