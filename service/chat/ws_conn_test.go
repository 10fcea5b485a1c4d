package chat

import (
	"net/http/httptest"
	"testing"

	"facegram/service/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWsConn_OverflowClosesSlowConnection(t *testing.T) {
	m := metrics.New()
	c := &WsConn{
		id:      "slow",
		send:    make(chan []byte, 1),
		done:    make(chan struct{}),
		metrics: m,
		log:     zap.NewNop(),
	}
	evt := PresenceEvent("u", true)

	require.NoError(t, c.Send(evt))
	assert.ErrorIs(t, c.Send(evt), ErrSendQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Overflow))

	select {
	case <-c.Done():
	default:
		t.Fatal("overflow should close the connection")
	}
	assert.ErrorIs(t, c.Send(evt), ErrConnClosed)
	assert.NoError(t, c.Close())
}

func TestConnConfNorm(t *testing.T) {
	var c ConnConf
	c.norm()
	assert.Equal(t, 256, c.SendQueueSize)
	assert.Less(t, c.PingInterval, c.PongWait)
	assert.EqualValues(t, 64<<10, c.MaxMessage)

	c = ConnConf{PingInterval: c.PongWait * 2, PongWait: c.PongWait}
	c.norm()
	assert.Less(t, c.PingInterval, c.PongWait)
}

func TestServer_CheckOrigin(t *testing.T) {
	s := NewServer(NewHub(), NewDispatcher(), ServerConf{AllowedOrigins: []string{"http://localhost:5173/"}})

	cases := map[string]bool{
		"":                      true,
		"http://localhost:5173": true,
		"http://LOCALHOST:5173": true,
		"http://evil.example":   false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, s.checkOrigin(r), origin)
	}

	open := NewServer(NewHub(), NewDispatcher(), ServerConf{AllowedOrigins: []string{"*"}})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://anywhere")
	assert.True(t, open.checkOrigin(r))
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher()
	err := d.Dispatch(&Context{}, &Event{Name: "nope"}, &Session{Conn: newFakeConn()})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Nil(t, d.GetHandler("nope"))
	assert.Empty(t, d.Events())
}
