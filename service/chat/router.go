package chat

import (
	"encoding/json"
	"slices"

	"facegram/service/metrics"
	errors "facegram/tools/errs"

	"go.uber.org/zap"
)

// RouteOutcome is what happened to a live delivery. A drop is not an error.
type RouteOutcome int

const (
	RouteDelivered RouteOutcome = iota + 1
	RouteDropped
)

func (o RouteOutcome) String() string {
	switch o {
	case RouteDelivered:
		return "delivered"
	case RouteDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Router forwards new-message payloads to the other participant of a
// two-party conversation. It never touches persistence and never queues:
// an offline recipient finds the message in history on the next fetch.
type Router struct {
	lookup  func(userID string) (Conn, bool)
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewRouter(lookup func(string) (Conn, bool), m *metrics.Metrics, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{lookup: lookup, metrics: m, log: log}
}

// RecipientOf picks the participant that is not senderID. Group
// conversations (more than two entries) are a configuration error, as is a
// list that does not contain the sender or has no distinct peer.
func RecipientOf(senderID string, participants []string) (string, error) {
	if len(participants) > 2 {
		return "", errors.ErrConfiguration.WrapMsg("group conversations are not supported", "participants", len(participants))
	}
	if !slices.Contains(participants, senderID) {
		return "", errors.ErrConfiguration.WrapMsg("sender is not a participant", "sender", senderID)
	}
	for _, p := range participants {
		if p != senderID {
			return p, nil
		}
	}
	return "", errors.ErrConfiguration.WrapMsg("conversation has no recipient", "sender", senderID)
}

// Route delivers payload verbatim as message-delivered to the recipient's
// connection. It never delivers to the sender.
func (r *Router) Route(senderID string, participants []string, payload json.RawMessage) (RouteOutcome, error) {
	recipient, err := RecipientOf(senderID, participants)
	if err != nil {
		return 0, err
	}
	evt, err := NewRawEvent(EventMessageDelivered, payload)
	if err != nil {
		return 0, errors.ErrValidationFailed.WrapMsg(err.Error())
	}

	c, ok := r.lookup(recipient)
	if !ok {
		r.dropped(senderID, recipient, nil)
		return RouteDropped, nil
	}
	if err := c.Send(evt); err != nil {
		r.dropped(senderID, recipient, err)
		return RouteDropped, nil
	}
	if r.metrics != nil {
		r.metrics.Routing.WithLabelValues(RouteDelivered.String()).Inc()
	}
	return RouteDelivered, nil
}

func (r *Router) dropped(senderID, recipient string, cause error) {
	fields := []zap.Field{zap.String("from", senderID), zap.String("to", recipient)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	r.log.Info("new-message dropped, recipient not connected", fields...)
	if r.metrics != nil {
		r.metrics.Routing.WithLabelValues(RouteDropped.String()).Inc()
	}
}
