package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/moodchat/backend/internal/analysis/strategy"
	"github.com/zhouzirui/moodchat/backend/internal/conversation"
	"github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/sentiment"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrEmptyInput           = errors.New("message is required")
	ErrStreamingUnsupported = errors.New("responder does not support streaming")
)

// Classifier labels the sentiment of a user utterance.
type Classifier interface {
	Classify(ctx context.Context, text string) (sentiment.Result, error)
}

// Responder produces reply text in the requested tone.
type Responder interface {
	Generate(ctx context.Context, s strategy.Strategy, history []chat.Message, input string) (string, error)
}

// StreamResponder is a Responder that can also report partial output.
type StreamResponder interface {
	Responder
	Stream(ctx context.Context, s strategy.Strategy, history []chat.Message, input string, onDelta func(string) error) (string, error)
}

// Config tunes the turn loop.
type Config struct {
	Trend conversation.TrendOptions
	// ContextLimit caps the prior messages handed to the responder; 0 means all.
	ContextLimit int
}

// TurnResult summarizes one completed turn.
type TurnResult struct {
	SessionID string            `json:"sessionId"`
	Sentiment sentiment.Result  `json:"sentiment"`
	Trend     sentiment.Trend   `json:"trend"`
	Strategy  strategy.Strategy `json:"strategy"`
	Reply     string            `json:"reply"`
}

// EmotionSummary is the emotion history of a session with its current trend.
type EmotionSummary struct {
	SessionID string             `json:"sessionId"`
	History   []sentiment.Result `json:"history"`
	Trend     sentiment.Trend    `json:"trend"`
}

type session struct {
	// mu serializes turns; a turn holds it across both model calls.
	mu    sync.Mutex
	info  chat.Session
	store *conversation.Store
}

// Service owns every live session and drives turns against the collaborators.
type Service struct {
	mu           sync.RWMutex
	sessions     map[string]*session
	classifier   Classifier
	responder    Responder
	trend        conversation.TrendOptions
	contextLimit int
}

// NewService wires the turn loop to its classifier and responder.
func NewService(classifier Classifier, responder Responder, cfg Config) *Service {
	trend := cfg.Trend
	if trend == (conversation.TrendOptions{}) {
		trend = conversation.DefaultTrendOptions()
	}

	return &Service{
		sessions:     make(map[string]*session),
		classifier:   classifier,
		responder:    responder,
		trend:        trend,
		contextLimit: cfg.ContextLimit,
	}
}

// CreateSession provisions an empty conversation.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	store := conversation.NewStore()
	info := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: store.StartedAt().UTC(),
	}

	s.mu.Lock()
	s.sessions[info.ID] = &session{info: info, store: store}
	s.mu.Unlock()

	slog.Info("Session created", "session_id", info.ID)
	return info, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return sess.info, nil
}

// ListSessions returns every live session, oldest first.
func (s *Service) ListSessions(_ context.Context) []chat.Session {
	s.mu.RLock()
	out := make([]chat.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteSession drops a session and its state.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)

	slog.Info("Session deleted", "session_id", sessionID)
	return nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.store.History(), nil
}

// Emotions returns the recorded sentiments of a session and the current trend.
func (s *Service) Emotions(_ context.Context, sessionID string) (EmotionSummary, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return EmotionSummary{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return EmotionSummary{
		SessionID: sessionID,
		History:   sess.store.EmotionHistory(),
		Trend:     sess.store.RecentTrend(s.trend),
	}, nil
}

// Turn runs one full exchange: classify, record, pick a strategy, reply, record.
// Nothing is recorded if classification fails; no reply is recorded if generation fails.
func (s *Service) Turn(ctx context.Context, sessionID, text string) (TurnResult, error) {
	return s.turn(ctx, sessionID, text, func(ctx context.Context, st strategy.Strategy, history []chat.Message, input string) (string, error) {
		return s.responder.Generate(ctx, st, history, input)
	})
}

// StreamTurn is Turn with the reply streamed to onDelta as it is produced.
func (s *Service) StreamTurn(ctx context.Context, sessionID, text string, onDelta func(string) error) (TurnResult, error) {
	streamer, ok := s.responder.(StreamResponder)
	if !ok {
		return TurnResult{}, ErrStreamingUnsupported
	}
	return s.turn(ctx, sessionID, text, func(ctx context.Context, st strategy.Strategy, history []chat.Message, input string) (string, error) {
		return streamer.Stream(ctx, st, history, input, onDelta)
	})
}

// SupportsStreaming reports whether StreamTurn can be used.
func (s *Service) SupportsStreaming() bool {
	streamer, ok := s.responder.(StreamResponder)
	if !ok {
		return false
	}
	if toggle, ok := streamer.(interface{ StreamingEnabled() bool }); ok {
		return toggle.StreamingEnabled()
	}
	return true
}

type generateFunc func(ctx context.Context, st strategy.Strategy, history []chat.Message, input string) (string, error)

func (s *Service) turn(ctx context.Context, sessionID, text string, generate generateFunc) (TurnResult, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return TurnResult{}, ErrEmptyInput
	}

	sess, err := s.lookup(sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	started := time.Now()

	emotion, err := s.classifier.Classify(ctx, input)
	if err != nil {
		return TurnResult{}, fmt.Errorf("classify: %w", err)
	}
	if err := emotion.Validate(); err != nil {
		return TurnResult{}, fmt.Errorf("classify: %w", err)
	}

	sess.store.AddMessage(chat.SpeakerUser, input)
	sess.store.UpdateEmotion(emotion)

	trend := sess.store.RecentTrend(s.trend)
	selected := strategy.Select(emotion.Label, trend)

	reply, err := generate(ctx, selected, s.contextWindow(sess.store), input)
	if err != nil {
		return TurnResult{}, fmt.Errorf("generate: %w", err)
	}

	sess.store.AddMessage(chat.SpeakerAssistant, reply)

	slog.Info("Turn completed",
		"session_id", sessionID,
		"sentiment", emotion.Label,
		"confidence", emotion.Confidence,
		"trend", trend,
		"strategy", selected,
		"duration", time.Since(started),
	)

	return TurnResult{
		SessionID: sessionID,
		Sentiment: emotion,
		Trend:     trend,
		Strategy:  selected,
		Reply:     reply,
	}, nil
}

// contextWindow returns the last ContextLimit prior messages plus the current user message.
func (s *Service) contextWindow(store *conversation.Store) []chat.Message {
	if s.contextLimit <= 0 {
		return store.History()
	}
	return store.Recent(s.contextLimit + 1)
}

func (s *Service) lookup(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}
