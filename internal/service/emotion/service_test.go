package emotion

import (
	"context"
	"errors"
	"testing"

	"github.com/zhouzirui/moodchat/backend/internal/model/sentiment"
)

func TestParseClassifierOutput(t *testing.T) {
	result, err := parseClassifierOutput("```json\n{\"sentiment\": \"Negative\", \"confidence\": 0.82}\n```")
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if result.Label != sentiment.Negative || result.Confidence != 0.82 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseClassifierOutputClampsConfidence(t *testing.T) {
	result, err := parseClassifierOutput(`{"sentiment":"positive","confidence":7}`)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if result.Confidence != 1 {
		t.Fatalf("expected clamped confidence, got %f", result.Confidence)
	}
}

func TestParseClassifierOutputRejectsGarbage(t *testing.T) {
	for _, content := range []string{
		"Positive",
		`{"sentiment":"mixed","confidence":0.5}`,
		`{"sentiment":`,
	} {
		if _, err := parseClassifierOutput(content); err == nil {
			t.Fatalf("expected error for %q", content)
		}
	}
}

func TestClassifyWithoutModelUsesFallback(t *testing.T) {
	svc, err := NewService(context.Background(), nil, Config{Enabled: true, Fallback: true})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	if svc.Enabled() {
		t.Fatal("expected model classifier to be disabled without a chat model")
	}

	result, err := svc.Classify(context.Background(), "I am so sad and tired")
	if err != nil {
		t.Fatalf("Classify err: %v", err)
	}
	if result.Label != sentiment.Negative {
		t.Fatalf("expected negative, got %s", result.Label)
	}
}

func TestClassifyWithoutModelOrFallbackFails(t *testing.T) {
	svc, err := NewService(context.Background(), nil, Config{Enabled: true})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	if _, err := svc.Classify(context.Background(), "hello"); !errors.Is(err, ErrClassifierUnavailable) {
		t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
	}
}
