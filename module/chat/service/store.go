//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../../../mocks/mock_message_store.go -package=mocks
package service

import (
	"context"
	"time"

	"facegram/module/chat/model"
)

// MessageStore is the durable side of the chat: conversations, messages and
// read markers. Validation and lookup failures come back as CodeErrors;
// anything else is a storage failure.
type MessageStore interface {
	CreateConversation(ctx context.Context, a, b string) (*model.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	CreateMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, error)
	UpdateConversationSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error
	ListMessages(ctx context.Context, conversationID string, before *model.Cursor, limit int) ([]*model.Message, error)
	ListConversations(ctx context.Context, userID string) ([]*model.ConversationSummary, error)
	MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error
}

// EventPublisher hands message.created to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.MessageCreated) error
}
