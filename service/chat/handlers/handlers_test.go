package handlers_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"facegram/service/chat"
	"facegram/service/chat/handlers"
	errors "facegram/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var seq atomic.Int64

type conn struct {
	id     string
	mu     sync.Mutex
	events []*chat.Event
}

func newConn() *conn { return &conn{id: fmt.Sprintf("c%d", seq.Add(1))} }

func (c *conn) ID() string   { return c.id }
func (c *conn) Close() error { return nil }
func (c *conn) Send(evt *chat.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *conn) last(name string) *chat.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Name == name {
			return c.events[i]
		}
	}
	return nil
}

func (c *conn) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

type fixture struct {
	hub  *chat.Hub
	disp *chat.Dispatcher
	ctx  *chat.Context
}

func newFixture() *fixture {
	hub := chat.NewHub()
	return &fixture{
		hub:  hub,
		disp: handlers.RegisterAll(chat.NewDispatcher()),
		ctx:  &chat.Context{Hub: hub, Log: zap.NewNop()},
	}
}

func (f *fixture) session(t *testing.T, subject string) (*conn, *chat.Session) {
	t.Helper()
	c := newConn()
	require.NoError(t, f.hub.Connect(c))
	return c, &chat.Session{Conn: c, Subject: subject}
}

func (f *fixture) fire(sess *chat.Session, name, data string) error {
	evt, err := chat.NewRawEvent(name, json.RawMessage(data))
	if err != nil {
		panic(err)
	}
	return f.disp.Dispatch(f.ctx, evt, sess)
}

func TestRegisterAllCoversInboundEvents(t *testing.T) {
	d := handlers.RegisterAll(chat.NewDispatcher())
	assert.ElementsMatch(t, []string{
		chat.EventAnnounceIdentity, chat.EventJoinConversation, chat.EventNewMessage,
		chat.EventTyping, chat.EventAnnounceOnline, chat.EventAnnounceOffline,
		chat.EventRequestOnlineSnapshot,
	}, d.Events())
}

func TestIdentity(t *testing.T) {
	f := newFixture()
	c, sess := f.session(t, "")

	require.NoError(t, f.fire(sess, chat.EventAnnounceIdentity, `{"userId":"A","displayName":"Ann"}`))
	ack := c.last(chat.EventIdentityAck)
	require.NotNil(t, ack)
	assert.JSONEq(t, `{"userId":"A"}`, string(ack.Data))
	got, ok := f.hub.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, c.ID(), got.ID())
}

func TestIdentityNumericUserID(t *testing.T) {
	f := newFixture()
	_, sess := f.session(t, "")
	require.NoError(t, f.fire(sess, chat.EventAnnounceIdentity, `{"userId":42}`))
	_, ok := f.hub.Lookup("42")
	assert.True(t, ok)
}

func TestIdentityLargeNumericIDsStayDistinct(t *testing.T) {
	f := newFixture()
	c1, s1 := f.session(t, "")
	c2, s2 := f.session(t, "")

	require.NoError(t, f.fire(s1, chat.EventAnnounceIdentity, `{"userId":9007199254740993}`))
	require.NoError(t, f.fire(s2, chat.EventAnnounceIdentity, `{"userId":9007199254740992}`))

	got, ok := f.hub.Lookup("9007199254740993")
	require.True(t, ok)
	assert.Equal(t, c1.ID(), got.ID())
	got, ok = f.hub.Lookup("9007199254740992")
	require.True(t, ok)
	assert.Equal(t, c2.ID(), got.ID())
}

func TestIdentityMalformed(t *testing.T) {
	f := newFixture()
	c, sess := f.session(t, "")

	for _, data := range []string{`{}`, `{"userId":""}`, `[]`} {
		err := f.fire(sess, chat.EventAnnounceIdentity, data)
		require.Error(t, err, data)
		assert.True(t, errors.ErrRegistration.Is(err), data)
	}
	assert.Nil(t, c.last(chat.EventIdentityAck))
}

func TestIdentitySubjectMismatch(t *testing.T) {
	f := newFixture()
	f.ctx.RequireSubject = true
	_, sess := f.session(t, "A")

	err := f.fire(sess, chat.EventAnnounceIdentity, `{"userId":"B"}`)
	assert.True(t, errors.ErrRegistration.Is(err))
	require.NoError(t, f.fire(sess, chat.EventAnnounceIdentity, `{"userId":"A"}`))
}

func TestJoin(t *testing.T) {
	f := newFixture()
	c, sess := f.session(t, "")

	require.NoError(t, f.fire(sess, chat.EventJoinConversation, `{"conversationId":"9"}`))
	assert.NotNil(t, c.last(chat.EventJoined))
	assert.Equal(t, 1, f.hub.NotifyConversation(chat.ConversationUpdate{ConversationID: "9"}))

	err := f.fire(sess, chat.EventJoinConversation, `{}`)
	assert.True(t, errors.ErrValidationFailed.Is(err))
}

func TestNewMessage(t *testing.T) {
	f := newFixture()
	_, sa := f.session(t, "")
	b, sb := f.session(t, "")
	require.NoError(t, f.fire(sa, chat.EventAnnounceIdentity, `{"userId":"A"}`))
	require.NoError(t, f.fire(sb, chat.EventAnnounceIdentity, `{"userId":"B"}`))

	msg := `{"senderId":"A","participants":["A","B"],"content":"hi","conversationId":"9"}`
	require.NoError(t, f.fire(sa, chat.EventNewMessage, msg))
	got := b.last(chat.EventMessageDelivered)
	require.NotNil(t, got)
	assert.JSONEq(t, msg, string(got.Data))

	err := f.fire(sa, chat.EventNewMessage, `{"senderId":"A","participants":["A","B","C"],"content":"x"}`)
	assert.True(t, errors.ErrConfiguration.Is(err))

	err = f.fire(sa, chat.EventNewMessage, `{"senderId":"B","participants":["A","B"],"content":"x"}`)
	assert.True(t, errors.ErrValidationFailed.Is(err), "cannot speak for another user")

	err = f.fire(sa, chat.EventNewMessage, `{"senderId":"A"}`)
	assert.True(t, errors.ErrValidationFailed.Is(err))
}

func TestNewMessageRecipientOffline(t *testing.T) {
	f := newFixture()
	_, sa := f.session(t, "")
	require.NoError(t, f.fire(sa, chat.EventNewMessage, `{"senderId":"A","participants":["A","B"],"content":"hi"}`))
}

func TestTypingSwallowsFailures(t *testing.T) {
	f := newFixture()
	a, sa := f.session(t, "")
	b, sb := f.session(t, "")
	require.NoError(t, f.fire(sa, chat.EventAnnounceIdentity, `{"userId":"A"}`))
	require.NoError(t, f.fire(sb, chat.EventAnnounceIdentity, `{"userId":"B"}`))

	require.NoError(t, f.fire(sa, chat.EventTyping, `{"senderId":"A","recipientId":"B","isTyping":true}`))
	got := b.last(chat.EventTypingStatus)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"userId":"A","isTyping":true}`, string(got.Data))
	assert.Zero(t, a.count(chat.EventTypingStatus))

	assert.NoError(t, f.fire(sa, chat.EventTyping, `{"senderId":"A"}`))
	assert.NoError(t, f.fire(sa, chat.EventTyping, `{"senderId":"A","recipientId":"nobody","isTyping":true}`))
	assert.NoError(t, f.fire(sa, chat.EventTyping, `{"senderId":"B","recipientId":"A","isTyping":true}`))
	assert.Zero(t, a.count(chat.EventTypingStatus))
}

func TestPresenceAnnounces(t *testing.T) {
	f := newFixture()
	a, sa := f.session(t, "")

	require.NoError(t, f.fire(sa, chat.EventAnnounceOnline, `{"userId":"A"}`))
	require.NoError(t, f.fire(sa, chat.EventAnnounceOnline, `{"userId":"A"}`))
	assert.Equal(t, 1, a.count(chat.EventPresenceOnline), "sender sees its own broadcast once")
	assert.Equal(t, []string{"A"}, f.hub.Snapshot())

	require.NoError(t, f.fire(sa, chat.EventAnnounceOffline, `{"userId":"A"}`))
	assert.Empty(t, f.hub.Snapshot())
	assert.Equal(t, 1, a.count(chat.EventPresenceOffline))

	assert.NoError(t, f.fire(sa, chat.EventAnnounceOnline, `{}`))
	assert.Empty(t, f.hub.Snapshot())
}

func TestSnapshotRepliesToRequesterOnly(t *testing.T) {
	f := newFixture()
	a, sa := f.session(t, "")
	b, _ := f.session(t, "")
	f.hub.MarkOnline("B")
	f.hub.MarkOnline("A")

	require.NoError(t, f.fire(sa, chat.EventRequestOnlineSnapshot, `{}`))
	got := a.last(chat.EventOnlineSnapshot)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"userIds":["A","B"]}`, string(got.Data))
	assert.Zero(t, b.count(chat.EventOnlineSnapshot))
}
