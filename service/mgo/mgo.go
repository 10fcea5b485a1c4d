package mgo

import (
	"context"
	"sync"
	"time"

	"facegram/data/database"
	"facegram/service/chat"
	"facegram/service/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const SessionTableName = "user_session_log"

// SessionRecord is one connection's identified lifetime.
type SessionRecord struct {
	ConnID         string     `bson:"conn_id"`
	UserID         string     `bson:"user_id"`
	ConnectedAt    time.Time  `bson:"connected_at"`
	DisconnectedAt *time.Time `bson:"disconnected_at,omitempty"`
	Reason         string     `bson:"reason,omitempty"`
}

func (r *SessionRecord) GetTableName() string {
	return SessionTableName
}

// SessionWriter persists session records.
type SessionWriter interface {
	Opened(ctx context.Context, rec *SessionRecord) error
	Closed(ctx context.Context, connID string, at time.Time, reason string) error
}

// MongoSessions writes SessionRecords to user_session_log.
type MongoSessions struct {
	coll *mongo.Collection
}

func NewMongoSessions(db *mongo.Database) *MongoSessions {
	return &MongoSessions{coll: database.Collection(db, &SessionRecord{})}
}

func (m *MongoSessions) Opened(ctx context.Context, rec *SessionRecord) error {
	_, err := m.coll.InsertOne(ctx, rec)
	return err
}

// Closed stamps every open record for connID.
func (m *MongoSessions) Closed(ctx context.Context, connID string, at time.Time, reason string) error {
	_, err := m.coll.UpdateMany(ctx,
		bson.M{"conn_id": connID, "disconnected_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"disconnected_at": at, "reason": reason}},
	)
	return err
}

type sessionEvent struct {
	connID string
	userID string
	at     time.Time
	reason string
	open   bool
}

// SessionLog is a chat.SessionObserver that hands lifecycle changes to one
// writer goroutine.
type SessionLog struct {
	w       SessionWriter
	events  chan sessionEvent
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	timeout time.Duration
	now     func() time.Time

	metrics *metrics.Metrics
	log     *zap.Logger
}

var _ chat.SessionObserver = (*SessionLog)(nil)

func NewSessionLog(w SessionWriter, buffer int, m *metrics.Metrics, log *zap.Logger) *SessionLog {
	if buffer <= 0 {
		buffer = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionLog{
		w:       w,
		events:  make(chan sessionEvent, buffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		timeout: 2 * time.Second,
		now:     time.Now,
		metrics: m,
		log:     log,
	}
}

func (l *SessionLog) SessionOpened(connID, userID string) {
	l.enqueue(sessionEvent{connID: connID, userID: userID, at: l.now(), open: true})
}

func (l *SessionLog) SessionClosed(connID, userID, reason string) {
	l.enqueue(sessionEvent{connID: connID, userID: userID, at: l.now(), reason: reason})
}

func (l *SessionLog) enqueue(ev sessionEvent) {
	select {
	case l.events <- ev:
	default:
		l.log.Warn("session log queue full, event dropped",
			zap.String("conn", ev.connID), zap.String("user", ev.userID), zap.Bool("open", ev.open))
		l.fail()
	}
}

func (l *SessionLog) Start() {
	go l.run()
}

// Close flushes queued events and stops the writer.
func (l *SessionLog) Close() {
	l.once.Do(func() { close(l.stop) })
	<-l.done
}

func (l *SessionLog) run() {
	defer close(l.done)
	for {
		select {
		case ev := <-l.events:
			l.write(ev)
		case <-l.stop:
			for {
				select {
				case ev := <-l.events:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *SessionLog) write(ev sessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	var err error
	if ev.open {
		// a re-identified connection closes its previous record first
		if err = l.w.Closed(ctx, ev.connID, ev.at.UTC(), "reidentified"); err == nil {
			err = l.w.Opened(ctx, &SessionRecord{ConnID: ev.connID, UserID: ev.userID, ConnectedAt: ev.at.UTC()})
		}
	} else {
		err = l.w.Closed(ctx, ev.connID, ev.at.UTC(), ev.reason)
	}
	if err != nil {
		l.log.Warn("session log write failed",
			zap.String("conn", ev.connID), zap.String("user", ev.userID), zap.Error(err))
		l.fail()
	}
}

func (l *SessionLog) fail() {
	if l.metrics != nil {
		l.metrics.Persistence.WithLabelValues("session").Inc()
	}
}
