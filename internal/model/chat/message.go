package chat

import (
	"time"

	"github.com/zhouzirui/moodchat/backend/internal/model/sentiment"
)

// Speaker identifies who produced a message.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Message is a single entry of a conversation log. Only user messages carry a sentiment.
type Message struct {
	Speaker   Speaker           `json:"speaker"`
	Content   string            `json:"content"`
	Sentiment *sentiment.Result `json:"sentiment,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
