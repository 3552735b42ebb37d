// Package conversation owns the message log and emotion history of one session.
package conversation

import (
	"time"

	"github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/sentiment"
)

// Store keeps the append-only conversation state of a single session.
// It performs no I/O and is not safe for concurrent use; callers serialize access.
type Store struct {
	messages  []chat.Message
	emotions  []sentiment.Result
	startedAt time.Time
}

// NewStore returns an empty store stamped with the current time.
func NewStore() *Store {
	return &Store{
		messages:  make([]chat.Message, 0, 16),
		emotions:  make([]sentiment.Result, 0, 8),
		startedAt: time.Now(),
	}
}

// AddMessage appends a message without sentiment. Content is stored as given.
func (s *Store) AddMessage(speaker chat.Speaker, text string) {
	s.messages = append(s.messages, chat.Message{
		Speaker:   speaker,
		Content:   text,
		CreatedAt: time.Now(),
	})
}

// UpdateEmotion records result in the emotion history and attaches it to the latest
// message when that message is from the user and has no sentiment yet.
// A second call without an intervening user message is recorded in history only.
func (s *Store) UpdateEmotion(result sentiment.Result) {
	s.emotions = append(s.emotions, result)

	if len(s.messages) == 0 {
		return
	}
	last := &s.messages[len(s.messages)-1]
	if last.Speaker != chat.SpeakerUser || last.Sentiment != nil {
		return
	}
	attached := result
	last.Sentiment = &attached
}

// History returns a copy of the messages in conversation order.
func (s *Store) History() []chat.Message {
	return copyMessages(s.messages)
}

// Recent returns a copy of the last n messages.
func (s *Store) Recent(n int) []chat.Message {
	if n <= 0 {
		return []chat.Message{}
	}
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	return copyMessages(s.messages[start:])
}

// EmotionHistory returns a copy of every recorded sentiment, oldest first.
func (s *Store) EmotionHistory() []sentiment.Result {
	return append([]sentiment.Result(nil), s.emotions...)
}

// Len reports the number of messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// StartedAt reports when the session state was created.
func (s *Store) StartedAt() time.Time {
	return s.startedAt
}

func copyMessages(src []chat.Message) []chat.Message {
	out := make([]chat.Message, len(src))
	copy(out, src)
	for i := range out {
		if out[i].Sentiment != nil {
			result := *out[i].Sentiment
			out[i].Sentiment = &result
		}
	}
	return out
}
