package handlers

import (
	"facegram/service/chat"
	errors "facegram/tools/errs"

	"go.uber.org/zap"
)

// MessageHandler forwards a new-message payload, untouched, to the other
// participant. Persistence goes through the REST send path; a recipient who
// is not connected is a drop, not an error.
type MessageHandler struct{}

func NewMessageHandler() chat.Handler   { return &MessageHandler{} }
func (h *MessageHandler) Event() string { return chat.EventNewMessage }

func (h *MessageHandler) Handle(ctx *chat.Context, evt *chat.Event, sess *chat.Session) error {
	p, err := decodePayload[chat.NewMessagePayload](evt, errors.ErrValidationFailed)
	if err != nil {
		return err
	}
	if err := checkSender(ctx, sess, p.SenderID); err != nil {
		return err
	}
	outcome, err := ctx.Hub.RouteNewMessage(p.SenderID, p.Participants, evt.Data)
	if err != nil {
		return err
	}
	ctx.Log.Debug("new-message routed",
		zap.String("from", p.SenderID), zap.String("conversation", p.ConversationID), zap.Stringer("outcome", outcome))
	return nil
}
