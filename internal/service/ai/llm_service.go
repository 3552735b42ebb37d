package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/moodchat/backend/internal/analysis/strategy"
	"github.com/zhouzirui/moodchat/backend/internal/model/chat"
)

// ErrStreamingDisabled is returned by Stream when the configuration turns streaming off.
var ErrStreamingDisabled = errors.New("streaming disabled in configuration")

// Config 控制回复生成。
type Config struct {
	// ContextLimit is how many prior messages are replayed to the model.
	ContextLimit int
	// Streaming enables token streaming through Stream.
	Streaming bool
}

// Service generates replies in the tone picked by the strategy selector.
type Service struct {
	chatModel model.ChatModel
	cfg       Config
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates a new AI service instance
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if cfg.ContextLimit < 1 {
		cfg.ContextLimit = 5
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled 指示是否开启流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.Streaming
}

// Generate produces the full reply for input. history is the conversation so far and
// may already end with input itself.
func (s *Service) Generate(ctx context.Context, st strategy.Strategy, history []chat.Message, input string) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(st, history, input))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	slog.Debug("Generated reply", "strategy", st, "length", len(response.Content))
	return response.Content, nil
}

// Stream behaves like Generate but reports each chunk to onDelta as it arrives.
// An error from onDelta aborts the stream.
func (s *Service) Stream(ctx context.Context, st strategy.Strategy, history []chat.Message, input string, onDelta func(string) error) (string, error) {
	if !s.StreamingEnabled() {
		return "", ErrStreamingDisabled
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(st, history, input))
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("ai stream recv failed: %w", recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}

	if len(chunks) == 0 {
		return "", nil
	}

	merged, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("concat ai chunks failed: %w", err)
	}
	return merged.Content, nil
}

func (s *Service) buildChainInput(st strategy.Strategy, history []chat.Message, input string) map[string]any {
	prior := trimCurrentInput(history, input)
	return map[string]any{
		"system":  buildSystemPrompt(st, len(prior) == 0),
		"history": buildHistoryMessages(prior, s.cfg.ContextLimit),
		"query":   input,
	}
}

// buildSystemPrompt 将回复策略转换为系统提示。
func buildSystemPrompt(st strategy.Strategy, fresh bool) string {
	base := st.Prompt()
	if fresh {
		return base + "\n\nThis is a new conversation."
	}
	return base
}

// trimCurrentInput drops the trailing user message when it is the input being answered,
// so the model does not see it twice.
func trimCurrentInput(history []chat.Message, input string) []chat.Message {
	if len(history) == 0 {
		return history
	}
	last := history[len(history)-1]
	if last.Speaker == chat.SpeakerUser && last.Content == input {
		return history[:len(history)-1]
	}
	return history
}

func buildHistoryMessages(messages []chat.Message, limit int) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > limit {
		startIdx = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Speaker {
		case chat.SpeakerUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.SpeakerAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
