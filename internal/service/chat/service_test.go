package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/zhouzirui/moodchat/backend/internal/analysis/strategy"
	"github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/sentiment"
	chatservice "github.com/zhouzirui/moodchat/backend/internal/service/chat"
)

type fakeClassifier struct {
	labels []sentiment.Label
	calls  int
	err    error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (sentiment.Result, error) {
	if f.err != nil {
		return sentiment.Result{}, f.err
	}
	label := sentiment.Neutral
	if f.calls < len(f.labels) {
		label = f.labels[f.calls]
	}
	f.calls++
	return sentiment.Result{Label: label, Confidence: 0.9}, nil
}

type fakeResponder struct {
	mu         sync.Mutex
	strategies []strategy.Strategy
	histories  [][]chat.Message
	err        error
}

func (f *fakeResponder) Generate(_ context.Context, st strategy.Strategy, history []chat.Message, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.strategies = append(f.strategies, st)
	f.histories = append(f.histories, history)
	return "reply to " + input, nil
}

type fakeStreamResponder struct {
	fakeResponder
}

func (f *fakeStreamResponder) Stream(ctx context.Context, st strategy.Strategy, history []chat.Message, input string, onDelta func(string) error) (string, error) {
	reply, err := f.Generate(ctx, st, history, input)
	if err != nil {
		return "", err
	}
	for _, part := range strings.SplitAfter(reply, " ") {
		if err := onDelta(part); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func newService(t *testing.T, classifier chatservice.Classifier, responder chatservice.Responder) (*chatservice.Service, string) {
	t.Helper()
	svc := chatservice.NewService(classifier, responder, chatservice.Config{})
	session, err := svc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return svc, session.ID
}

func TestServiceGetSession(t *testing.T) {
	svc, id := newService(t, &fakeClassifier{}, &fakeResponder{})
	ctx := context.Background()

	got, err := svc.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if got.ID != id {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, id)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected creation time")
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chatservice.NewService(&fakeClassifier{}, &fakeResponder{}, chatservice.Config{})

	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Turn(context.Background(), "missing", "hi"); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceTurnRecordsBothMessages(t *testing.T) {
	classifier := &fakeClassifier{labels: []sentiment.Label{sentiment.Positive}}
	responder := &fakeResponder{}
	svc, id := newService(t, classifier, responder)
	ctx := context.Background()

	result, err := svc.Turn(ctx, id, "  I got the job!  ")
	if err != nil {
		t.Fatalf("Turn err: %v", err)
	}

	if result.Strategy != strategy.Cheerful || result.Trend != sentiment.Stable {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Reply != "reply to I got the job!" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}

	transcript, err := svc.LoadTranscript(ctx, id)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(transcript))
	}
	if transcript[0].Speaker != chat.SpeakerUser || transcript[0].Sentiment == nil || transcript[0].Sentiment.Label != sentiment.Positive {
		t.Fatalf("unexpected user message: %+v", transcript[0])
	}
	if transcript[1].Speaker != chat.SpeakerAssistant || transcript[1].Sentiment != nil {
		t.Fatalf("unexpected assistant message: %+v", transcript[1])
	}

	// The responder sees the user message that triggered the turn.
	history := responder.histories[0]
	if len(history) != 1 || history[0].Content != "I got the job!" {
		t.Fatalf("unexpected responder history: %+v", history)
	}
}

func TestServiceTurnTracksTrend(t *testing.T) {
	labels := []sentiment.Label{
		sentiment.Positive, sentiment.Positive,
		sentiment.Negative, sentiment.Negative, sentiment.Negative,
		sentiment.Negative,
	}
	svc, id := newService(t, &fakeClassifier{labels: labels}, &fakeResponder{})
	ctx := context.Background()

	var last chatservice.TurnResult
	for i := range labels {
		result, err := svc.Turn(ctx, id, "turn")
		if err != nil {
			t.Fatalf("turn %d err: %v", i, err)
		}
		last = result
		if i == 4 && (result.Trend != sentiment.Declining || result.Strategy != strategy.Empathetic) {
			t.Fatalf("turn %d: expected declining/empathetic, got %+v", i, result)
		}
	}

	// P N N N N: earlier average 0 against recent -1.
	if last.Trend != sentiment.Declining || last.Strategy != strategy.Empathetic {
		t.Fatalf("unexpected final result: %+v", last)
	}

	summary, err := svc.Emotions(ctx, id)
	if err != nil {
		t.Fatalf("Emotions err: %v", err)
	}
	if len(summary.History) != len(labels) || summary.Trend != last.Trend {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestServiceTurnClassifyFailureLeavesStateUntouched(t *testing.T) {
	svc, id := newService(t, &fakeClassifier{err: errors.New("model down")}, &fakeResponder{})
	ctx := context.Background()

	if _, err := svc.Turn(ctx, id, "hello"); err == nil {
		t.Fatal("expected classify error")
	}

	transcript, _ := svc.LoadTranscript(ctx, id)
	summary, _ := svc.Emotions(ctx, id)
	if len(transcript) != 0 || len(summary.History) != 0 {
		t.Fatalf("expected no state change, got %d messages and %d emotions", len(transcript), len(summary.History))
	}
}

func TestServiceTurnGenerateFailureAddsNoAssistantMessage(t *testing.T) {
	svc, id := newService(t, &fakeClassifier{}, &fakeResponder{err: errors.New("timeout")})
	ctx := context.Background()

	if _, err := svc.Turn(ctx, id, "hello"); err == nil {
		t.Fatal("expected generate error")
	}

	transcript, _ := svc.LoadTranscript(ctx, id)
	for _, msg := range transcript {
		if msg.Speaker == chat.SpeakerAssistant {
			t.Fatalf("unexpected assistant message: %+v", msg)
		}
	}
}

func TestServiceTurnRejectsEmptyInput(t *testing.T) {
	classifier := &fakeClassifier{}
	svc, id := newService(t, classifier, &fakeResponder{})

	if _, err := svc.Turn(context.Background(), id, "   "); !errors.Is(err, chatservice.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if classifier.calls != 0 {
		t.Fatal("classifier should not be called for empty input")
	}
}

func TestServiceTurnRejectsInvalidClassification(t *testing.T) {
	svc, id := newService(t, &fakeClassifier{labels: []sentiment.Label{"joy"}}, &fakeResponder{})

	if _, err := svc.Turn(context.Background(), id, "hello"); err == nil {
		t.Fatal("expected invalid classification to fail the turn")
	}
}

func TestServiceStreamTurn(t *testing.T) {
	svc, id := newService(t, &fakeClassifier{}, &fakeStreamResponder{})

	if !svc.SupportsStreaming() {
		t.Fatal("expected streaming support")
	}

	var deltas []string
	result, err := svc.StreamTurn(context.Background(), id, "hello there", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamTurn err: %v", err)
	}
	if strings.Join(deltas, "") != result.Reply {
		t.Fatalf("deltas %q do not add up to reply %q", deltas, result.Reply)
	}
}

func TestServiceStreamTurnUnsupported(t *testing.T) {
	svc, id := newService(t, &fakeClassifier{}, &fakeResponder{})

	if svc.SupportsStreaming() {
		t.Fatal("plain responder should not report streaming")
	}
	_, err := svc.StreamTurn(context.Background(), id, "hello", func(string) error { return nil })
	if !errors.Is(err, chatservice.ErrStreamingUnsupported) {
		t.Fatalf("expected ErrStreamingUnsupported, got %v", err)
	}
}

func TestServiceDeleteAndListSessions(t *testing.T) {
	svc, id := newService(t, &fakeClassifier{}, &fakeResponder{})
	ctx := context.Background()

	second, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if got := len(svc.ListSessions(ctx)); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}

	if err := svc.DeleteSession(ctx, id); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if err := svc.DeleteSession(ctx, id); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	sessions := svc.ListSessions(ctx)
	if len(sessions) != 1 || sessions[0].ID != second.ID {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestServiceSessionsAreIndependent(t *testing.T) {
	classifier := &lockedClassifier{label: sentiment.Negative}
	svc := chatservice.NewService(classifier, &fakeResponder{}, chatservice.Config{})
	ctx := context.Background()

	ids := make([]string, 4)
	for i := range ids {
		session, err := svc.CreateSession(ctx)
		if err != nil {
			t.Fatalf("CreateSession err: %v", err)
		}
		ids[i] = session.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				if _, err := svc.Turn(ctx, id, "hi"); err != nil {
					t.Errorf("Turn err: %v", err)
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		transcript, err := svc.LoadTranscript(ctx, id)
		if err != nil {
			t.Fatalf("LoadTranscript err: %v", err)
		}
		if len(transcript) != 6 {
			t.Fatalf("session %s: expected 6 messages, got %d", id, len(transcript))
		}
	}
}

type lockedClassifier struct {
	label sentiment.Label
}

func (c *lockedClassifier) Classify(_ context.Context, _ string) (sentiment.Result, error) {
	return sentiment.Result{Label: c.label, Confidence: 0.7}, nil
}

func TestServiceTurnLimitsResponderContext(t *testing.T) {
	responder := &fakeResponder{}
	svc := chatservice.NewService(&fakeClassifier{}, responder, chatservice.Config{ContextLimit: 2})
	ctx := context.Background()
	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	for _, text := range []string{"one", "two", "three"} {
		if _, err := svc.Turn(ctx, session.ID, text); err != nil {
			t.Fatalf("Turn(%q) err: %v", text, err)
		}
	}

	// Two prior messages plus the message being answered.
	history := responder.histories[2]
	if len(history) != 3 {
		t.Fatalf("expected 3 messages in context, got %d: %+v", len(history), history)
	}
	if history[0].Content != "two" || history[1].Content != "reply to two" || history[2].Content != "three" {
		t.Fatalf("unexpected context window: %+v", history)
	}
}
