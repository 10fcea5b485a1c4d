package chat

import (
	"sort"
	"sync"

	"facegram/service/metrics"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PresenceObserver hears every online/offline transition, in order. It is
// called with the presence lock held and must only enqueue.
type PresenceObserver interface {
	PresenceChanged(userID string, online bool)
}

// Presence is the online set. A user enters on an explicit announce and
// leaves on an explicit announce or disconnect cleanup; membership does not
// depend on the registry. Transitions are broadcast to every target
// connection while the lock is held, so each connection sees them in the
// order they happened.
type Presence struct {
	mu        sync.Mutex
	online    map[string]struct{}
	targets   func() []Conn
	observers []PresenceObserver
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewPresence(targets func() []Conn, m *metrics.Metrics, log *zap.Logger) *Presence {
	if log == nil {
		log = zap.NewNop()
	}
	return &Presence{
		online:  make(map[string]struct{}),
		targets: targets,
		metrics: m,
		log:     log,
	}
}

func (p *Presence) AddObserver(o PresenceObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// MarkOnline adds userID and broadcasts presence-online. A user already online
// is a no-op: no second broadcast.
func (p *Presence) MarkOnline(userID string) bool {
	if userID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.online[userID]; ok {
		return false
	}
	p.online[userID] = struct{}{}
	p.transitionLocked(userID, true)
	return true
}

// MarkOffline removes userID and broadcasts presence-offline. A user not in the
// set is a no-op.
func (p *Presence) MarkOffline(userID string) bool {
	if userID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.online[userID]; !ok {
		return false
	}
	delete(p.online, userID)
	p.transitionLocked(userID, false)
	return true
}

// Snapshot returns the online set at call time, sorted.
func (p *Presence) Snapshot() []string {
	p.mu.Lock()
	ids := lo.Keys(p.online)
	p.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.online[userID]
	return ok
}

func (p *Presence) transitionLocked(userID string, online bool) {
	evt := PresenceEvent(userID, online)
	for _, c := range p.targets() {
		if err := c.Send(evt); err != nil {
			p.log.Debug("presence broadcast skipped",
				zap.String("conn", c.ID()), zap.String("event", evt.Name), zap.Error(err))
		}
	}
	for _, o := range p.observers {
		o.PresenceChanged(userID, online)
	}
	if p.metrics != nil {
		p.metrics.Presence.WithLabelValues(evt.Name).Inc()
		p.metrics.OnlineUsers.Set(float64(len(p.online)))
	}
}
