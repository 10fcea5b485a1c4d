package chat

import "errors"

var (
	ErrConnClosed    = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
	ErrUnknownEvent  = errors.New("no handler for event")
)

// Conn is one live bidirectional channel to one client process. The hub
// only ever enqueues; Send must not block.
type Conn interface {
	ID() string
	Send(evt *Event) error
	Close() error
}
