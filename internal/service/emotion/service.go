package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/moodchat/backend/internal/analysis/emotion"
	"github.com/zhouzirui/moodchat/backend/internal/model/sentiment"
)

// ErrClassifierUnavailable is returned when no model is configured and fallback is off.
var ErrClassifierUnavailable = errors.New("sentiment classifier unavailable")

// Config 控制情绪分析服务的行为。
type Config struct {
	// Enabled routes classification through the chat model.
	Enabled bool
	// Fallback substitutes keyword heuristics when the model is absent or fails.
	Fallback bool
}

// Service 使用大模型对用户输入进行情感分类，并在必要时回退到启发式规则。
type Service struct {
	enabled    bool
	fallback   bool
	classifier compose.Runnable[map[string]any, *schema.Message]
	heuristic  func(text string) analysis.Decision
}

// NewService 创建情绪分析服务。chatModel 可重用现有的大模型实例，也可以为 nil。
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	svc := &Service{
		enabled:   cfg.Enabled && chatModel != nil,
		fallback:  cfg.Fallback,
		heuristic: analysis.Analyze,
	}

	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage("{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sentiment classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回是否使用大模型进行分类。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Classify labels text as positive, negative or neutral with a confidence in [0,1].
func (s *Service) Classify(ctx context.Context, text string) (sentiment.Result, error) {
	if !s.Enabled() {
		if s != nil && s.fallback {
			return s.heuristic(text).Result(), nil
		}
		return sentiment.Result{}, ErrClassifierUnavailable
	}

	result, err := s.classifyWithModel(ctx, text)
	if err == nil {
		return result, nil
	}

	// A cancelled caller gets the cancellation, not a guessed label.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return sentiment.Result{}, ctxErr
	}

	if !s.fallback {
		return sentiment.Result{}, err
	}

	slog.Warn("Sentiment classifier failed, using keyword fallback", "error", err)
	return s.heuristic(text).Result(), nil
}

func (s *Service) classifyWithModel(ctx context.Context, text string) (sentiment.Result, error) {
	msg, err := s.classifier.Invoke(ctx, map[string]any{
		"text": strings.TrimSpace(text),
	})
	if err != nil {
		return sentiment.Result{}, fmt.Errorf("classifier invoke failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return sentiment.Result{}, errors.New("classifier returned empty output")
	}

	return parseClassifierOutput(msg.Content)
}

// parseClassifierOutput 解析大模型返回的 JSON，容忍前后多余文本。
func parseClassifierOutput(content string) (sentiment.Result, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return sentiment.Result{}, fmt.Errorf("missing json object")
	}

	var payload classifierPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return sentiment.Result{}, fmt.Errorf("invalid classifier json: %w", err)
	}

	label, ok := sentiment.ParseLabel(payload.Sentiment)
	if !ok {
		return sentiment.Result{}, fmt.Errorf("unknown sentiment %q", payload.Sentiment)
	}

	return sentiment.Result{
		Label:      label,
		Confidence: sentiment.ClampConfidence(payload.Confidence),
	}, nil
}

type classifierPayload struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float32 `json:"confidence"`
}

const classifierSystemPrompt = "You are a sentiment analysis expert. Analyze the emotional tone of the user's text. " +
	"Return only a JSON object with two fields: sentiment (one of Positive, Negative, Neutral) " +
	"and confidence (a number between 0 and 1). Be accurate and thoughtful in your assessment. Do not output any other text."
