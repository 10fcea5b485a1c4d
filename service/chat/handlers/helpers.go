package handlers

import (
	"facegram/service/chat"
	"facegram/tools/decode"
	errors "facegram/tools/errs"
)

// decodePayload decodes and validates evt.Data into T, tagging failures with code.
func decodePayload[T any](evt *chat.Event, code errors.CodeError) (*T, error) {
	p, err := decode.DecodeJSON[T](evt.Data)
	if err != nil {
		return nil, code.WrapMsg(err.Error(), "event", evt.Name)
	}
	return p, nil
}

// checkSender rejects a payload that speaks for a different user than the one
// the connection announced. Unidentified connections are not checked.
func checkSender(ctx *chat.Context, sess *chat.Session, claimed string) error {
	if u := sess.UserID(ctx.Hub); u != "" && u != claimed {
		return errors.ErrValidationFailed.WrapMsg("payload user does not match announced identity",
			"claimed", claimed, "announced", u)
	}
	return nil
}

// All returns one handler per inbound event.
func All() []chat.Handler {
	return []chat.Handler{
		NewIdentityHandler(),
		NewJoinHandler(),
		NewMessageHandler(),
		NewTypingHandler(),
		NewOnlineHandler(),
		NewOfflineHandler(),
		NewSnapshotHandler(),
	}
}

// RegisterAll binds every handler to d.
func RegisterAll(d *chat.Dispatcher) *chat.Dispatcher {
	d.Register(All()...)
	return d
}
