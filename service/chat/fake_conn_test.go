package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

var connSeq atomic.Int64

// fakeConn records every event sent to it.
type fakeConn struct {
	id string

	mu      sync.Mutex
	events  []*Event
	closed  bool
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fmt.Sprintf("conn-%d", connSeq.Add(1))}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(evt *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.events = append(c.events, evt)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) received() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Event(nil), c.events...)
}

// named returns the events called name.
func (c *fakeConn) named(name string) []*Event {
	var out []*Event
	for _, e := range c.received() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func decodeData[T any](evt *Event) T {
	var v T
	if err := json.Unmarshal(evt.Data, &v); err != nil {
		panic(err)
	}
	return v
}

type presenceRecord struct {
	user   string
	online bool
}

type recordingObserver struct {
	mu       sync.Mutex
	presence []presenceRecord
	opened   []string
	closed   []string
}

func (o *recordingObserver) PresenceChanged(userID string, online bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.presence = append(o.presence, presenceRecord{userID, online})
}

func (o *recordingObserver) SessionOpened(connID, userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, connID+"/"+userID)
}

func (o *recordingObserver) SessionClosed(connID, userID, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, connID+"/"+userID+"/"+reason)
}
