package chat

import (
	"net/http"
	"strconv"

	"facegram/global"
	"facegram/middleware"
	midsec "facegram/middleware/security"
	"facegram/module/chat/service"
	"facegram/tools/decode"
	errors "facegram/tools/errs"

	"github.com/gin-gonic/gin"
)

// OnlineSource is the read-only presence view behind GET /api/online.
type OnlineSource interface {
	Snapshot() []string
}

type createChatReq struct {
	UserID string `json:"userId" validate:"required"`
}

type sendMessageReq struct {
	ChatID  string `json:"chatid" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// Server serves the conversation REST surface.
type Server struct {
	Svc    *service.MessageService
	Online OnlineSource
}

// Routes mounts every endpoint on r. auth guards all of them except the
// presence snapshot.
func (s *Server) Routes(r gin.IRoutes, auth gin.HandlerFunc) {
	opt := middleware.RouteOpt{Auth: auth}
	middleware.POST(r, "/api/create/chat", wrap(s.CreateChat), opt)
	middleware.POST(r, "/api/send/message", wrap(s.SendMessage), opt)
	middleware.GET(r, "/api/get/messages/:chatid", wrap(s.GetMessages), opt)
	middleware.GET(r, "/api/get/chatlist", wrap(s.GetChatList), opt)
	middleware.POST(r, "/api/read/:chatid", wrap(s.MarkRead), opt)
	middleware.GET(r, "/api/online", wrap(s.GetOnline), middleware.RouteOpt{})
}

// wrap turns an error return into the CodeError JSON body.
func wrap(h func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h(c); err != nil {
			c.JSON(errors.HTTPStatus(err), errors.Body(err))
		}
	}
}

func bindBody[T any](c *gin.Context) (*T, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, errors.ErrValidationFailed.WrapMsg(err.Error())
	}
	req, err := decode.DecodeJSON[T](raw)
	if err != nil {
		return nil, errors.ErrValidationFailed.WrapMsg(err.Error())
	}
	return req, nil
}

// CreateChat returns the caller's conversation with userId, creating it on
// first use.
func (s *Server) CreateChat(c *gin.Context) error {
	req, err := bindBody[createChatReq](c)
	if err != nil {
		return err
	}
	conv, err := s.Svc.CreateConversation(c.Request.Context(), midsec.UserID(c), req.UserID)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, global.Success(conv))
	return nil
}

func (s *Server) SendMessage(c *gin.Context) error {
	req, err := bindBody[sendMessageReq](c)
	if err != nil {
		return err
	}
	res, err := s.Svc.Send(c.Request.Context(), midsec.UserID(c), req.ChatID, req.Content)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, global.Success(res))
	return nil
}

// GetMessages pages newest-first. ?before takes the previous page's nextBefore.
func (s *Server) GetMessages(c *gin.Context) error {
	limit := int(parseInt64(c.Query("limit"), 0))
	page, err := s.Svc.History(c.Request.Context(), midsec.UserID(c), c.Param("chatid"), c.Query("before"), limit)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, global.Success(page))
	return nil
}

func (s *Server) GetChatList(c *gin.Context) error {
	list, err := s.Svc.List(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, global.Success(list))
	return nil
}

func (s *Server) MarkRead(c *gin.Context) error {
	if err := s.Svc.MarkRead(c.Request.Context(), midsec.UserID(c), c.Param("chatid")); err != nil {
		return err
	}
	c.JSON(http.StatusOK, global.Success(nil))
	return nil
}

func (s *Server) GetOnline(c *gin.Context) error {
	users := []string{}
	if s.Online != nil {
		users = append(users, s.Online.Snapshot()...)
	}
	c.JSON(http.StatusOK, global.Success(gin.H{"users": users}))
	return nil
}

// helpers
func parseInt64(s string, def int64) int64 {
	x, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return x
}
