package handlers

import (
	"facegram/service/chat"
	errors "facegram/tools/errs"

	"go.uber.org/zap"
)

// IdentityHandler binds a connection to the user it announces. A malformed
// announce is a RegistrationError; the socket stays open either way.
type IdentityHandler struct{}

func NewIdentityHandler() chat.Handler   { return &IdentityHandler{} }
func (h *IdentityHandler) Event() string { return chat.EventAnnounceIdentity }

func (h *IdentityHandler) Handle(ctx *chat.Context, evt *chat.Event, sess *chat.Session) error {
	p, err := decodePayload[chat.IdentityPayload](evt, errors.ErrRegistration)
	if err != nil {
		return err
	}
	if ctx.RequireSubject && sess.Subject != p.UserID {
		return errors.ErrRegistration.WrapMsg("userId does not match token subject", "userId", p.UserID)
	}
	if err := ctx.Hub.Register(p.UserID, sess.Conn); err != nil {
		return err
	}
	ctx.Log.Debug("identity registered",
		zap.String("user", p.UserID), zap.String("name", p.DisplayName), zap.String("conn", sess.Conn.ID()))
	return sess.Reply(chat.IdentityAckEvent(p.UserID))
}
