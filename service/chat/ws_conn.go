package chat

import (
	"net"
	"sync"
	"time"

	"facegram/service/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnConf tunes one websocket connection.
type ConnConf struct {
	SendQueueSize int           // per-connection outbound buffer, in frames
	PingInterval  time.Duration // transport heartbeat period
	PongWait      time.Duration // read deadline, extended on every pong
	WriteWait     time.Duration // deadline for a single write
	MaxMessage    int64         // inbound frame size limit, bytes
}

func (c *ConnConf) norm() {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessage <= 0 {
		c.MaxMessage = 64 << 10
	}
}

// WsConn is the gorilla-backed Conn. Only the write pump writes to the
// socket; Send just enqueues. The send channel is never closed, done is.
type WsConn struct {
	id        string
	ws        *websocket.Conn
	remote    net.Addr
	createdAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	conf    ConnConf
	metrics *metrics.Metrics
	log     *zap.Logger
}

func newWsConn(ws *websocket.Conn, conf ConnConf, m *metrics.Metrics, log *zap.Logger) *WsConn {
	conf.norm()
	c := &WsConn{
		id:        uuid.NewString(),
		ws:        ws,
		remote:    ws.RemoteAddr(),
		createdAt: time.Now(),
		send:      make(chan []byte, conf.SendQueueSize),
		done:      make(chan struct{}),
		conf:      conf,
		metrics:   m,
	}
	c.log = log.With(zap.String("conn", c.id))
	return c
}

func (c *WsConn) ID() string { return c.id }

func (c *WsConn) RemoteAddr() net.Addr { return c.remote }

// Send enqueues evt without blocking. A full queue means the client cannot
// keep up: the event is dropped and the connection closed, which runs the
// usual disconnect cleanup once the read loop notices.
func (c *WsConn) Send(evt *Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- evt.Bytes():
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
	}
	if c.metrics != nil {
		c.metrics.Overflow.Inc()
	}
	c.log.Warn("send queue full, closing slow connection",
		zap.String("event", evt.Name), zap.Int("queue", cap(c.send)))
	_ = c.Close()
	return ErrSendQueueFull
}

// Close asks the write pump to send a close frame and tear the socket down.
// It does not wait and is safe to call more than once.
func (c *WsConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *WsConn) Done() <-chan struct{} { return c.done }

func (c *WsConn) writePump() {
	ticker := time.NewTicker(c.conf.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				_ = c.Close()
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.conf.WriteWait)); err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				_ = c.Close()
				return
			}

		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.conf.WriteWait))
			return
		}
	}
}
