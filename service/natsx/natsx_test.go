package natsx

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"facegram/module/chat/model"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagePublisher_Publish(t *testing.T) {
	var sent *nats.Msg
	p := &MessagePublisher{subject: "chat.message.created", send: func(_ context.Context, m *nats.Msg) error {
		sent = m
		return nil
	}}

	ev := model.MessageCreated{MessageID: "42", ConversationID: "7", SenderID: "alice", Content: "hi", Seq: 1}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.NotNil(t, sent)
	assert.Equal(t, "chat.message.created", sent.Subject)
	assert.Equal(t, "42", sent.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, model.MessageCreatedEvent, sent.Header.Get("Event"))

	var got model.MessageCreated
	require.NoError(t, json.Unmarshal(sent.Data, &got))
	assert.Equal(t, "7", got.ConversationID)
	assert.Equal(t, "hi", got.Content)
}

func TestMessagePublisher_PublishFailure(t *testing.T) {
	p := &MessagePublisher{subject: "s", send: func(context.Context, *nats.Msg) error {
		return nats.ErrConnectionClosed
	}}
	err := p.Publish(context.Background(), model.MessageCreated{MessageID: "1"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, nats.ErrConnectionClosed))
}

func TestWithMsgID(t *testing.T) {
	hdr := withMsgID(nil, "")
	assert.Len(t, hdr[nats.MsgIdHdr], 32)

	hdr = withMsgID(map[string]string{"a": "b"}, "m1")
	assert.Equal(t, "m1", hdr[nats.MsgIdHdr])
	assert.Equal(t, "b", hdr["a"])
}

func TestToHeader(t *testing.T) {
	h := ToHeader(map[string]string{"X-Trace": "t1"})
	assert.Equal(t, "t1", h.Get("X-Trace"))
}

func TestNewNatsxClient_NeedsServers(t *testing.T) {
	_, err := NewNatsxClient(NatsxConfig{})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, JetStream, ParseMode("JetStream"))
	assert.Equal(t, JetStream, ParseMode(" js "))
	assert.Equal(t, Core, ParseMode("core"))
	assert.Equal(t, Core, ParseMode(""))
}
