package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/zhouzirui/moodchat/backend/internal/config"
	"github.com/zhouzirui/moodchat/backend/internal/service/ai"
	"github.com/zhouzirui/moodchat/backend/internal/service/chat"
	emotionservice "github.com/zhouzirui/moodchat/backend/internal/service/emotion"
)

// ErrModelUnavailable 表示未配置大模型凭证。
var ErrModelUnavailable = errors.New("chat model unavailable")

// BuildChatService 根据配置组装情绪分类器、回复生成器与会话服务。
// 回复生成必须依赖大模型，未配置凭证时直接返回错误。
func BuildChatService(ctx context.Context, cfg *config.Config) (*chat.Service, error) {
	if !cfg.AI.Enabled() {
		return nil, oops.Errorf("%w: set MODEL plus ARK_API_KEY or an AK/SK pair", ErrModelUnavailable)
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to create chat model")
	}

	emotionSvc, err := emotionservice.NewService(ctx, chatModel, emotionservice.Config{
		Enabled:  cfg.AI.EmotionLLMEnabled,
		Fallback: cfg.AI.EmotionFallback,
	})
	if err != nil {
		return nil, oops.Wrapf(err, "failed to initialize emotion service")
	}
	if emotionSvc.Enabled() {
		slog.Info("Emotion classifier service enabled", "fallback", cfg.AI.EmotionFallback)
	} else {
		slog.Info("Emotion classifier disabled by configuration, using keyword heuristics")
	}

	aiSvc, err := ai.NewService(ctx, chatModel, ai.Config{
		ContextLimit: cfg.AI.ContextLimit,
		Streaming:    cfg.AI.StreamResponse,
	})
	if err != nil {
		return nil, oops.Wrapf(err, "failed to initialize AI service")
	}
	slog.Info("AI service initialized", "model", cfg.AI.Model, "streaming", aiSvc.StreamingEnabled())

	return chat.NewService(emotionSvc, aiSvc, chat.Config{Trend: cfg.Trend.Options(), ContextLimit: cfg.AI.ContextLimit}), nil
}
