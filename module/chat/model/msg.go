package model

import "time"

const MessageTableName = "messages"

// Message is one durable chat message. MessageID, Seq and CreatedAt are
// assigned by the store, never by the client.
type Message struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Seq            int64     `json:"seq"` // per-conversation, gap-free, starts at 1
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (m *Message) GetTableName() string {
	return MessageTableName
}

// MessageCreatedEvent names MessageCreated on the event bus.
const MessageCreatedEvent = "message.created"

// MessageCreated is the event published after a message is stored.
type MessageCreated struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Seq            int64     `json:"seq"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

func NewMessageCreated(m *Message) MessageCreated {
	return MessageCreated{
		MessageID:      m.MessageID,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
