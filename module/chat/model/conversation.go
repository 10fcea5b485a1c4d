package model

import (
	"slices"
	"time"
)

const (
	ConversationTableName = "conversations"
	ReadTableName         = "conversation_reads"
)

// Conversation is a two-party thread. The pair is stored ordered, so
// (a, b) and (b, a) name the same conversation.
type Conversation struct {
	ConversationID string    `json:"conversationId"`
	Participants   []string  `json:"participants"`
	LastMessage    string    `json:"lastMessage"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	MaxSeq         int64     `json:"maxSeq"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (c *Conversation) GetTableName() string {
	return ConversationTableName
}

func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// Peer returns the participant that is not userID.
func (c *Conversation) Peer(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ConversationID string    `json:"conversationId"`
	PeerID         string    `json:"peerId"`
	PeerOnline     bool      `json:"peerOnline"`
	LastMessage    string    `json:"lastMessage"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	Unread         bool      `json:"unread"`
}

// OrderedPair returns a and b sorted.
func OrderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
