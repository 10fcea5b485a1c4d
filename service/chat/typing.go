package chat

import (
	"facegram/service/metrics"

	"go.uber.org/zap"
)

// TypingRelay forwards "is typing" signals to one peer. It keeps no state:
// no debounce, no dedupe, no queue. Auto-clearing after sender inactivity is
// the client's job.
type TypingRelay struct {
	lookup  func(userID string) (Conn, bool)
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewTypingRelay(lookup func(string) (Conn, bool), m *metrics.Metrics, log *zap.Logger) *TypingRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &TypingRelay{lookup: lookup, metrics: m, log: log}
}

// Relay sends typing-status {userId: senderID, isTyping} to recipientID's
// connection. An unknown recipient is silently dropped; the return value
// only reports whether something was enqueued.
func (t *TypingRelay) Relay(senderID, recipientID string, isTyping bool) bool {
	c, ok := t.lookup(recipientID)
	if !ok {
		t.count("dropped")
		return false
	}
	if err := c.Send(TypingStatusEvent(senderID, isTyping)); err != nil {
		t.log.Debug("typing relay failed",
			zap.String("from", senderID), zap.String("to", recipientID), zap.Error(err))
		t.count("dropped")
		return false
	}
	t.count("delivered")
	return true
}

func (t *TypingRelay) count(outcome string) {
	if t.metrics != nil {
		t.metrics.Typing.WithLabelValues(outcome).Inc()
	}
}
