package chat

import "go.uber.org/zap"

// Handler serves one inbound event name.
type Handler interface {
	Event() string
	Handle(ctx *Context, evt *Event, sess *Session) error
}

// Context carries the process-wide collaborators every handler needs.
type Context struct {
	Hub *Hub
	Log *zap.Logger
	// RequireSubject makes announce-identity accept only the user id the
	// connection authenticated as at upgrade time.
	RequireSubject bool
}

// Session is the per-connection state the read loop hands to handlers.
type Session struct {
	Conn Conn
	// Subject is the verified token subject presented at upgrade, or "".
	Subject string
}

// UserID is the identity the connection announced, if any.
func (s *Session) UserID(h *Hub) string {
	u, _ := h.UserOf(s.Conn)
	return u
}

// Reply enqueues evt on the session's own connection.
func (s *Session) Reply(evt *Event) error { return s.Conn.Send(evt) }
