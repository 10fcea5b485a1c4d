package handlers

import (
	"facegram/service/chat"
	errors "facegram/tools/errs"

	"go.uber.org/zap"
)

// OnlineHandler and OfflineHandler apply explicit presence announces. Like
// typing, their failures never reach the client.
type OnlineHandler struct{}

func NewOnlineHandler() chat.Handler   { return &OnlineHandler{} }
func (h *OnlineHandler) Event() string { return chat.EventAnnounceOnline }

func (h *OnlineHandler) Handle(ctx *chat.Context, evt *chat.Event, sess *chat.Session) error {
	if userID, ok := presenceUser(ctx, evt, sess); ok {
		ctx.Hub.MarkOnline(userID)
	}
	return nil
}

type OfflineHandler struct{}

func NewOfflineHandler() chat.Handler   { return &OfflineHandler{} }
func (h *OfflineHandler) Event() string { return chat.EventAnnounceOffline }

func (h *OfflineHandler) Handle(ctx *chat.Context, evt *chat.Event, sess *chat.Session) error {
	if userID, ok := presenceUser(ctx, evt, sess); ok {
		ctx.Hub.MarkOffline(userID)
	}
	return nil
}

func presenceUser(ctx *chat.Context, evt *chat.Event, sess *chat.Session) (string, bool) {
	p, err := decodePayload[chat.UserPayload](evt, errors.ErrValidationFailed)
	if err == nil {
		err = checkSender(ctx, sess, p.UserID)
	}
	if err != nil {
		ctx.Log.Info("presence announce ignored",
			zap.String("event", evt.Name), zap.String("conn", sess.Conn.ID()), zap.Error(err))
		return "", false
	}
	return p.UserID, true
}

// SnapshotHandler answers the requester, and only the requester, with the
// current online set.
type SnapshotHandler struct{}

func NewSnapshotHandler() chat.Handler   { return &SnapshotHandler{} }
func (h *SnapshotHandler) Event() string { return chat.EventRequestOnlineSnapshot }

func (h *SnapshotHandler) Handle(ctx *chat.Context, _ *chat.Event, sess *chat.Session) error {
	return sess.Reply(chat.SnapshotEvent(ctx.Hub.Snapshot()))
}
