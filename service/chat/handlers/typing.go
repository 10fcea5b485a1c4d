package handlers

import (
	"facegram/service/chat"
	errors "facegram/tools/errs"

	"go.uber.org/zap"
)

// TypingHandler relays typing signals. Every failure is logged and swallowed.
type TypingHandler struct{}

func NewTypingHandler() chat.Handler   { return &TypingHandler{} }
func (h *TypingHandler) Event() string { return chat.EventTyping }

func (h *TypingHandler) Handle(ctx *chat.Context, evt *chat.Event, sess *chat.Session) error {
	p, err := decodePayload[chat.TypingPayload](evt, errors.ErrValidationFailed)
	if err != nil {
		ctx.Log.Info("typing ignored", zap.String("conn", sess.Conn.ID()), zap.Error(err))
		return nil
	}
	if err := checkSender(ctx, sess, p.SenderID); err != nil {
		ctx.Log.Info("typing ignored", zap.String("conn", sess.Conn.ID()), zap.Error(err))
		return nil
	}
	ctx.Hub.RelayTyping(p.SenderID, p.RecipientID, p.IsTyping)
	return nil
}
