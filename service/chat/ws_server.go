package chat

import (
	stderrors "errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	errors "facegram/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ServerConf configures the websocket endpoint.
type ServerConf struct {
	Conn           ConnConf
	AllowedOrigins []string // "*" allows any; an empty Origin header is always allowed
	RequireAuth    bool
	// Authenticate extracts and verifies a token from the upgrade request and
	// returns its subject. Nil disables authentication at upgrade.
	Authenticate func(r *http.Request) (string, error)
}

// Server accepts websocket connections and feeds their frames to the
// dispatcher. All shared state lives in the Hub.
type Server struct {
	hub      *Hub
	disp     *Dispatcher
	ctx      *Context
	conf     ServerConf
	upgrader websocket.Upgrader
	log      *zap.Logger
	wg       sync.WaitGroup
}

func NewServer(hub *Hub, disp *Dispatcher, conf ServerConf) *Server {
	conf.Conn.norm()
	s := &Server{
		hub:  hub,
		disp: disp,
		conf: conf,
		log:  hub.Logger().Named("ws"),
	}
	s.ctx = &Context{Hub: hub, Log: hub.Logger().Named("handler"), RequireSubject: conf.RequireAuth}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Disp() *Dispatcher { return s.disp }

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || lo.Contains(s.conf.AllowedOrigins, "*") {
		return true
	}
	return lo.ContainsBy(s.conf.AllowedOrigins, func(o string) bool {
		return strings.EqualFold(strings.TrimRight(o, "/"), strings.TrimRight(origin, "/"))
	})
}

// HandleWS upgrades the request and serves the connection until it drops.
func (s *Server) HandleWS(c *gin.Context) {
	subject := ""
	if s.conf.Authenticate != nil {
		sub, err := s.conf.Authenticate(c.Request)
		switch {
		case err == nil:
			subject = sub
		case s.conf.RequireAuth:
			s.log.Info("upgrade rejected", zap.String("remote", c.ClientIP()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, errors.Body(errors.ErrTokenExpired.WrapMsg(err.Error())))
			return
		}
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already answered the client
		s.log.Info("upgrade websocket failed", zap.String("remote", c.ClientIP()), zap.Error(err))
		return
	}

	conn := newWsConn(ws, s.conf.Conn, s.hub.Metrics(), s.log)
	if err := s.hub.Connect(conn); err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.conf.Conn.WriteWait))
		_ = ws.Close()
		return
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		conn.writePump()
	}()
	go func() {
		defer s.wg.Done()
		s.readLoop(conn, &Session{Conn: conn, Subject: subject})
	}()
}

// Wait blocks until every connection goroutine has exited.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) readLoop(conn *WsConn, sess *Session) {
	defer s.hub.Disconnect(conn)
	defer func() { _ = conn.Close() }()

	ws := conn.ws
	ws.SetReadLimit(conn.conf.MaxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(conn.conf.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(conn.conf.PongWait))
	})

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			var ne net.Error
			switch {
			case websocket.IsCloseError(rerr, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				conn.log.Debug("peer closed", zap.Error(rerr))
			case stderrors.As(rerr, &ne) && ne.Timeout():
				conn.log.Info("read timeout", zap.Error(rerr))
			default:
				conn.log.Debug("read ended", zap.Error(rerr))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		evt, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			conn.log.Info("bad frame", zap.Error(perr), zap.ByteString("sample", sample), zap.Int("len", len(data)))
			_ = sess.Reply(ErrorEvent("", errors.ErrValidationFailed.WrapMsg(perr.Error())))
			continue
		}
		s.dispatch(evt, sess)
	}
}

// dispatch runs one handler. A failing handler answers its sender with an
// error event; the connection stays open.
func (s *Server) dispatch(evt *Event, sess *Session) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.ErrPanic(r)
			s.log.Error("handler panic", zap.String("event", evt.Name), zap.String("conn", sess.Conn.ID()), zap.Error(err))
			_ = sess.Reply(ErrorEvent(evt.Name, err))
		}
	}()

	err := s.disp.Dispatch(s.ctx, evt, sess)
	if err == nil {
		return
	}
	if stderrors.Is(err, ErrUnknownEvent) {
		err = errors.ErrValidationFailed.WrapMsg(err.Error())
	}
	s.log.Debug("event rejected", zap.String("event", evt.Name), zap.String("conn", sess.Conn.ID()), zap.Error(err))
	_ = sess.Reply(ErrorEvent(evt.Name, err))
}
