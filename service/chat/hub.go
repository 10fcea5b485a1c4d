package chat

import (
	"encoding/json"
	"strings"
	"sync"

	"facegram/service/metrics"
	errors "facegram/tools/errs"

	"go.uber.org/zap"
)

// Disconnect reasons reported to session observers.
const (
	ReasonClosed   = "closed"
	ReasonReplaced = "replaced"
	ReasonShutdown = "shutdown"
)

// SessionObserver hears connection lifecycle changes. Like PresenceObserver
// it runs under the hub lock and must only enqueue.
type SessionObserver interface {
	SessionOpened(connID, userID string)
	SessionClosed(connID, userID, reason string)
}

// Hub owns the registry and the online set of one coordinator process.
// Every mutation goes through its methods; Register, Disconnect, MarkOnline
// and MarkOffline are serialized by mu. Lock order is
// Hub.mu -> Presence.mu -> Registry.mu.
type Hub struct {
	mu sync.Mutex

	registry *Registry
	presence *Presence
	typing   *TypingRelay
	router   *Router

	sessions      []SessionObserver
	closeReplaced bool
	closed        bool

	metrics *metrics.Metrics
	log     *zap.Logger
}

type Option func(*Hub)

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(h *Hub) { h.metrics = m } }

// WithCloseReplaced controls whether a connection superseded by a newer
// registration for the same user is closed. Default true.
func WithCloseReplaced(v bool) Option { return func(h *Hub) { h.closeReplaced = v } }

func WithPresenceObserver(o PresenceObserver) Option {
	return func(h *Hub) {
		if o != nil {
			h.presence.AddObserver(o)
		}
	}
}

func WithSessionObserver(o SessionObserver) Option {
	return func(h *Hub) {
		if o != nil {
			h.sessions = append(h.sessions, o)
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		registry:      NewRegistry(),
		closeReplaced: true,
		log:           zap.NewNop(),
	}
	h.presence = NewPresence(h.registry.All, nil, nil)
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	h.presence.metrics = h.metrics
	h.presence.log = h.log.Named("presence")
	h.typing = NewTypingRelay(h.registry.Lookup, h.metrics, h.log.Named("typing"))
	h.router = NewRouter(h.registry.Lookup, h.metrics, h.log.Named("router"))
	return h
}

func (h *Hub) Metrics() *metrics.Metrics { return h.metrics }

func (h *Hub) Logger() *zap.Logger { return h.log }

// Connect attaches a fresh, unidentified connection so it receives presence
// broadcasts. A hub that is shutting down refuses it.
func (h *Hub) Connect(c Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrConnClosed
	}
	if !h.registry.Has(c) {
		h.registry.Attach(c)
		h.metrics.Connections.Inc()
	}
	return nil
}

// Register binds userID to c, last writer wins. A blank id is a
// RegistrationError and leaves c open and unidentified.
func (h *Hub) Register(userID string, c Conn) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.ErrRegistration.WrapMsg("userId is required", "conn", c.ID())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrConnClosed
	}

	if !h.registry.Has(c) {
		h.metrics.Connections.Inc()
	}
	before, _ := h.registry.UserOf(c)
	prev := h.registry.Register(userID, c)
	if before != userID {
		for _, o := range h.sessions {
			o.SessionOpened(c.ID(), userID)
		}
	}
	if prev == nil {
		return nil
	}

	h.log.Info("connection replaced",
		zap.String("user", userID), zap.String("old", prev.ID()), zap.String("new", c.ID()))
	if h.closeReplaced {
		if err := prev.Close(); err != nil {
			h.log.Debug("close replaced connection", zap.String("conn", prev.ID()), zap.Error(err))
		}
	}
	return nil
}

// Disconnect runs cleanup for a dropped connection. If c was still the
// registered connection for its user, that user goes offline without an
// explicit announce. Calling it again for the same connection is a no-op.
func (h *Hub) Disconnect(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(c, ReasonClosed)
}

func (h *Hub) disconnectLocked(c Conn, reason string) {
	if !h.registry.Has(c) {
		return
	}
	userID, current := h.registry.Remove(c)
	h.metrics.Connections.Dec()

	if userID == "" {
		return
	}
	if current {
		h.presence.MarkOffline(userID)
	} else if reason == ReasonClosed {
		reason = ReasonReplaced
	}
	for _, o := range h.sessions {
		o.SessionClosed(c.ID(), userID, reason)
	}
	h.log.Debug("connection removed",
		zap.String("user", userID), zap.String("conn", c.ID()), zap.String("reason", reason))
}

func (h *Hub) MarkOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.MarkOnline(userID)
}

func (h *Hub) MarkOffline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.MarkOffline(userID)
}

func (h *Hub) Snapshot() []string { return h.presence.Snapshot() }

func (h *Hub) IsOnline(userID string) bool { return h.presence.IsOnline(userID) }

func (h *Hub) Lookup(userID string) (Conn, bool) { return h.registry.Lookup(userID) }

// UserOf returns the identity c announced, if any.
func (h *Hub) UserOf(c Conn) (string, bool) { return h.registry.UserOf(c) }

func (h *Hub) RelayTyping(senderID, recipientID string, isTyping bool) bool {
	return h.typing.Relay(senderID, recipientID, isTyping)
}

func (h *Hub) RouteNewMessage(senderID string, participants []string, payload json.RawMessage) (RouteOutcome, error) {
	return h.router.Route(senderID, participants, payload)
}

// Join subscribes c to conversation-updated notices for conversationID.
func (h *Hub) Join(c Conn, conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return errors.ErrValidationFailed.WrapMsg("conversationId is required")
	}
	if !h.registry.Join(c, conversationID) {
		return ErrConnClosed
	}
	return nil
}

// NotifyConversation sends a summary notice to every connection that joined
// the conversation and returns how many were enqueued. It never carries the
// message itself.
func (h *Hub) NotifyConversation(u ConversationUpdate) int {
	evt := ConversationUpdatedEvent(u)
	n := 0
	for _, c := range h.registry.Members(u.ConversationID) {
		if err := c.Send(evt); err != nil {
			h.log.Debug("conversation notice skipped",
				zap.String("conn", c.ID()), zap.String("conversation", u.ConversationID), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// Connections reports how many connections are attached.
func (h *Hub) Connections() int { return h.registry.Len() }

// Close refuses new connections, then closes every live one and runs its
// disconnect cleanup.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, c := range h.registry.All() {
		_ = c.Close()
		h.disconnectLocked(c, ReasonShutdown)
	}
}
