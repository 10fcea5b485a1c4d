package storage

import (
	"context"
	"sync"
	"time"

	"facegram/service/chat"
	"facegram/service/metrics"

	"go.uber.org/zap"
)

// PresenceStore is where the mirror writes. RedisPresence is the production one.
type PresenceStore interface {
	SetOnline(ctx context.Context, user, node string, ttl time.Duration) error
	SetOffline(ctx context.Context, user string) error
}

type MirrorConf struct {
	Node    string        // value stored under each online user's key
	TTL     time.Duration // key expiry; online users are refreshed every TTL/2
	Buffer  int           // pending transitions before new ones are dropped
	Timeout time.Duration // per-write deadline
}

func (c *MirrorConf) norm() {
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
}

type presenceChange struct {
	user   string
	online bool
}

// PresenceMirror copies presence transitions into a PresenceStore. It is a
// chat.PresenceObserver: PresenceChanged only enqueues, one goroutine does
// the I/O, so the hub lock never waits on the network.
type PresenceMirror struct {
	store    PresenceStore
	conf     MirrorConf
	snapshot func() []string

	changes chan presenceChange
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	metrics *metrics.Metrics
	log     *zap.Logger
}

var _ chat.PresenceObserver = (*PresenceMirror)(nil)

// NewPresenceMirror builds a stopped mirror. snapshot, when set, lists the
// users to refresh before their keys expire.
func NewPresenceMirror(store PresenceStore, conf MirrorConf, snapshot func() []string, m *metrics.Metrics, log *zap.Logger) *PresenceMirror {
	conf.norm()
	if log == nil {
		log = zap.NewNop()
	}
	return &PresenceMirror{
		store:    store,
		conf:     conf,
		snapshot: snapshot,
		changes:  make(chan presenceChange, conf.Buffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		metrics:  m,
		log:      log,
	}
}

func (p *PresenceMirror) PresenceChanged(userID string, online bool) {
	select {
	case p.changes <- presenceChange{user: userID, online: online}:
	default:
		p.log.Warn("presence mirror queue full, transition dropped",
			zap.String("user", userID), zap.Bool("online", online))
		p.fail()
	}
}

// Start runs the writer goroutine until Close.
func (p *PresenceMirror) Start() {
	go p.run()
}

// Close stops the writer after it has flushed what is already queued.
func (p *PresenceMirror) Close() {
	p.once.Do(func() { close(p.stop) })
	<-p.done
}

func (p *PresenceMirror) run() {
	defer close(p.done)

	var refresh <-chan time.Time
	if p.snapshot != nil && p.conf.TTL > 0 {
		t := time.NewTicker(p.conf.TTL / 2)
		defer t.Stop()
		refresh = t.C
	}

	for {
		select {
		case ch := <-p.changes:
			p.apply(ch)
		case <-refresh:
			for _, u := range p.snapshot() {
				p.apply(presenceChange{user: u, online: true})
			}
		case <-p.stop:
			for {
				select {
				case ch := <-p.changes:
					p.apply(ch)
				default:
					return
				}
			}
		}
	}
}

func (p *PresenceMirror) apply(ch presenceChange) {
	ctx, cancel := context.WithTimeout(context.Background(), p.conf.Timeout)
	defer cancel()

	var err error
	if ch.online {
		err = p.store.SetOnline(ctx, ch.user, p.conf.Node, p.conf.TTL)
	} else {
		err = p.store.SetOffline(ctx, ch.user)
	}
	if err != nil {
		p.log.Warn("presence mirror write failed",
			zap.String("user", ch.user), zap.Bool("online", ch.online), zap.Error(err))
		p.fail()
	}
}

func (p *PresenceMirror) fail() {
	if p.metrics != nil {
		p.metrics.Persistence.WithLabelValues("presence").Inc()
	}
}
