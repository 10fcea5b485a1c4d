package handlers

import (
	"facegram/service/chat"
	errors "facegram/tools/errs"
)

// JoinHandler subscribes the connection to conversation-updated notices.
type JoinHandler struct{}

func NewJoinHandler() chat.Handler   { return &JoinHandler{} }
func (h *JoinHandler) Event() string { return chat.EventJoinConversation }

func (h *JoinHandler) Handle(ctx *chat.Context, evt *chat.Event, sess *chat.Session) error {
	p, err := decodePayload[chat.JoinPayload](evt, errors.ErrValidationFailed)
	if err != nil {
		return err
	}
	if err := ctx.Hub.Join(sess.Conn, p.ConversationID); err != nil {
		return err
	}
	return sess.Reply(chat.JoinedEvent(p.ConversationID))
}
