package model

import (
	"context"
	"time"
)

// Message is one persisted entry of a tutoring session's history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMessage builds a user message stamped with the current time.
func UserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// AssistantMessage builds an assistant message stamped with the current time.
func AssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content, CreatedAt: time.Now().UTC()}
}

type ConversationRepository interface {
	// AddMessage adds a message to the conversation history for the given session
	AddMessage(ctx context.Context, sessionID string, message *Message) error

	// LoadHistory retrieves the conversation history for a session
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a session
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of messages in the session
	GetMessageCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	SessionID string
	Messages  []*Message
}
