package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	errors "facegram/tools/errs"
)

// Inbound events (client -> server).
const (
	EventAnnounceIdentity      = "announce-identity"
	EventJoinConversation      = "join-conversation"
	EventNewMessage            = "new-message"
	EventTyping                = "typing"
	EventAnnounceOnline        = "announce-online"
	EventAnnounceOffline       = "announce-offline"
	EventRequestOnlineSnapshot = "request-online-snapshot"
)

// Outbound events (server -> client).
const (
	EventMessageDelivered    = "message-delivered"
	EventTypingStatus        = "typing-status"
	EventPresenceOnline      = "presence-online"
	EventPresenceOffline     = "presence-offline"
	EventOnlineSnapshot      = "online-snapshot"
	EventIdentityAck         = "identity-ack"
	EventJoined              = "joined"
	EventConversationUpdated = "conversation-updated"
	EventError               = "error"
)

// Event is one frame on the live channel: {"event": name, "data": {...}}.
// The wire bytes are encoded once at construction, so a broadcast to N
// connections marshals once.
type Event struct {
	Name string
	Data json.RawMessage
	raw  []byte
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data and builds the frame.
func NewEvent(name string, data any) (*Event, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", name, err)
		}
		raw = b
	}
	return NewRawEvent(name, raw)
}

// NewRawEvent wraps an already encoded payload verbatim.
func NewRawEvent(name string, data json.RawMessage) (*Event, error) {
	if name == "" {
		return nil, errors.New("event name is empty")
	}
	if len(data) > 0 && !json.Valid(data) {
		return nil, errors.New("event payload is not valid json", "event", name)
	}
	b, err := json.Marshal(frame{Event: name, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", name, err)
	}
	return &Event{Name: name, Data: data, raw: b}, nil
}

// mustEvent is for server-built payloads whose types always marshal.
func mustEvent(name string, data any) *Event {
	evt, err := NewEvent(name, data)
	if err != nil {
		panic(err)
	}
	return evt
}

// Bytes returns the encoded frame.
func (e *Event) Bytes() []byte {
	if e.raw != nil {
		return e.raw
	}
	b, _ := json.Marshal(frame{Event: e.Name, Data: e.Data})
	return b
}

// ParseFrame decodes one inbound text frame.
func ParseFrame(raw []byte) (*Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Event == "" {
		return nil, errors.New("frame has no event name")
	}
	return &Event{Name: f.Event, Data: f.Data, raw: raw}, nil
}

// ---- payloads ----

type IdentityPayload struct {
	UserID      string `json:"userId" validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"max=256"`
}

type JoinPayload struct {
	ConversationID string `json:"conversationId" validate:"required,max=64"`
}

type NewMessagePayload struct {
	SenderID       string   `json:"senderId" validate:"required,max=128"`
	Participants   []string `json:"participants" validate:"required,min=1,dive,required"`
	Content        string   `json:"content"`
	ConversationID string   `json:"conversationId"`
}

type TypingPayload struct {
	SenderID    string `json:"senderId" validate:"required,max=128"`
	RecipientID string `json:"recipientId" validate:"required,max=128"`
	IsTyping    bool   `json:"isTyping"`
}

type UserPayload struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

type TypingStatus struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type OnlineSnapshot struct {
	UserIDs []string `json:"userIds"`
}

type ConversationUpdate struct {
	ConversationID string    `json:"conversationId"`
	LastMessage    string    `json:"lastMessage"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

func PresenceEvent(userID string, online bool) *Event {
	name := EventPresenceOffline
	if online {
		name = EventPresenceOnline
	}
	return mustEvent(name, UserPayload{UserID: userID})
}

func IdentityAckEvent(userID string) *Event {
	return mustEvent(EventIdentityAck, UserPayload{UserID: userID})
}

func JoinedEvent(conversationID string) *Event {
	return mustEvent(EventJoined, JoinPayload{ConversationID: conversationID})
}

func TypingStatusEvent(senderID string, isTyping bool) *Event {
	return mustEvent(EventTypingStatus, TypingStatus{UserID: senderID, IsTyping: isTyping})
}

// SnapshotEvent sorts ids so clients (and tests) see a stable order.
func SnapshotEvent(userIDs []string) *Event {
	ids := append([]string{}, userIDs...)
	sort.Strings(ids)
	return mustEvent(EventOnlineSnapshot, OnlineSnapshot{UserIDs: ids})
}

func ConversationUpdatedEvent(u ConversationUpdate) *Event {
	return mustEvent(EventConversationUpdated, u)
}

// ErrorEvent reports a failed inbound event to its sender.
func ErrorEvent(inReplyTo string, err error) *Event {
	body := errors.Body(err)
	return mustEvent(EventError, struct {
		Event string `json:"event,omitempty"`
		errors.CodeError
	}{Event: inReplyTo, CodeError: body})
}
