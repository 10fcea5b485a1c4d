package chat_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	midsec "facegram/middleware/security"
	"facegram/mocks"
	chatapi "facegram/module/chat"
	"facegram/module/chat/model"
	"facegram/module/chat/service"
	errors "facegram/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticOnline []string

func (s staticOnline) Snapshot() []string { return s }

// asUser stands in for the JWT middleware.
func asUser(user string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(midsec.PPCtxUserKey, user)
		c.Next()
	}
}

func setup(t *testing.T) (*mocks.MockMessageStore, *gin.Engine) {
	store := mocks.NewMockMessageStore(gomock.NewController(t))
	srv := &chatapi.Server{Svc: service.NewMessageService(store), Online: staticOnline{"alice", "bob"}}
	r := gin.New()
	srv.Routes(r, asUser("alice"))
	return store, r
}

type envelope struct {
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Detail string          `json:"detail"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

var at = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestCreateChat(t *testing.T) {
	store, r := setup(t)
	store.EXPECT().CreateConversation(gomock.Any(), "alice", "42").
		Return(&model.Conversation{ConversationID: "7", Participants: []string{"42", "alice"}}, nil)

	// numeric ids from older clients decode as strings
	code, env := do(t, r, http.MethodPost, "/api/create/chat", `{"userId": 42}`)
	require.Equal(t, http.StatusOK, code)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	assert.Equal(t, "7", conv.ConversationID)
}

func TestCreateChat_MissingPeer(t *testing.T) {
	_, r := setup(t)
	code, env := do(t, r, http.MethodPost, "/api/create/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errors.ValidationFailed, env.Code)
}

func TestSendMessage(t *testing.T) {
	store, r := setup(t)
	msg := &model.Message{MessageID: "100", ConversationID: "7", Seq: 1, SenderID: "alice", Content: "hi", CreatedAt: at}
	store.EXPECT().CreateMessage(gomock.Any(), "7", "alice", "hi").Return(msg, nil)
	store.EXPECT().UpdateConversationSummary(gomock.Any(), "7", "hi", at).Return(nil)

	code, env := do(t, r, http.MethodPost, "/api/send/message", `{"chatid": "7", "content": "hi"}`)
	require.Equal(t, http.StatusOK, code)
	var res service.SendResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "100", res.Message.MessageID)
	assert.False(t, res.SummaryStale)
}

func TestSendMessage_PersistenceFailureIs500(t *testing.T) {
	store, r := setup(t)
	store.EXPECT().CreateMessage(gomock.Any(), "7", "alice", "hi").Return(nil, assert.AnError)

	code, env := do(t, r, http.MethodPost, "/api/send/message", `{"chatid": 7, "content": "hi"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, errors.PersistenceFailure, env.Code)
}

func TestSendMessage_InvalidBody(t *testing.T) {
	_, r := setup(t)
	for _, body := range []string{`not json`, `{"chatid": "7"}`, `{"chatid": "7", "content": "   "}`} {
		code, env := do(t, r, http.MethodPost, "/api/send/message", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
		assert.Equal(t, errors.ValidationFailed, env.Code, body)
	}
}

func TestGetMessages(t *testing.T) {
	store, r := setup(t)
	store.EXPECT().GetConversation(gomock.Any(), "7").
		Return(&model.Conversation{ConversationID: "7", Participants: []string{"alice", "bob"}}, nil)
	store.EXPECT().ListMessages(gomock.Any(), "7", (*model.Cursor)(nil), 1).
		Return([]*model.Message{{MessageID: "3", Seq: 3, CreatedAt: at}}, nil)

	code, env := do(t, r, http.MethodGet, "/api/get/messages/7?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	var page model.MessagePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Messages, 1)
	assert.NotEmpty(t, page.NextBefore)
}

func TestGetMessages_MalformedLimitFallsBackToDefault(t *testing.T) {
	store, r := setup(t)
	store.EXPECT().GetConversation(gomock.Any(), "7").
		Return(&model.Conversation{ConversationID: "7", Participants: []string{"alice", "bob"}}, nil)
	store.EXPECT().ListMessages(gomock.Any(), "7", (*model.Cursor)(nil), model.DefaultPageSize).
		Return([]*model.Message{}, nil)

	code, _ := do(t, r, http.MethodGet, "/api/get/messages/7?limit=10abc", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestGetMessages_NotAParticipant(t *testing.T) {
	store, r := setup(t)
	store.EXPECT().GetConversation(gomock.Any(), "7").
		Return(&model.Conversation{ConversationID: "7", Participants: []string{"bob", "carol"}}, nil)

	code, env := do(t, r, http.MethodGet, "/api/get/messages/7", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, errors.NotFound, env.Code)
}

func TestGetChatList(t *testing.T) {
	store, r := setup(t)
	store.EXPECT().ListConversations(gomock.Any(), "alice").
		Return([]*model.ConversationSummary{{ConversationID: "7", PeerID: "bob", Unread: true}}, nil)

	code, env := do(t, r, http.MethodGet, "/api/get/chatlist", "")
	require.Equal(t, http.StatusOK, code)
	var list []model.ConversationSummary
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Unread)
}

func TestMarkRead(t *testing.T) {
	store, r := setup(t)
	store.EXPECT().GetConversation(gomock.Any(), "7").
		Return(&model.Conversation{ConversationID: "7", Participants: []string{"alice", "bob"}}, nil)
	store.EXPECT().MarkRead(gomock.Any(), "7", "alice", gomock.Any()).Return(nil)

	code, env := do(t, r, http.MethodPost, "/api/read/7", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)
}

func TestGetOnline(t *testing.T) {
	_, r := setup(t)
	code, env := do(t, r, http.MethodGet, "/api/online", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"users":["alice","bob"]}`, string(env.Data))
}
