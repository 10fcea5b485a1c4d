package natsx

import (
	"context"
	"encoding/json"

	"facegram/module/chat/model"
	errors "facegram/tools/errs"

	"github.com/nats-io/nats.go"
)

// MessagePublisher publishes message.created events on one subject.
type MessagePublisher struct {
	subject string
	send    func(ctx context.Context, msg *nats.Msg) error
}

func NewMessagePublisher(c *NatsxClient, subject string) *MessagePublisher {
	return &MessagePublisher{subject: subject, send: c.send}
}

// Publish uses the message id as Nats-Msg-Id.
func (p *MessagePublisher) Publish(ctx context.Context, ev model.MessageCreated) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapMsg(err, "encode message.created")
	}
	hdr := withMsgID(map[string]string{
		"Content-Type": "application/json",
		"Event":        model.MessageCreatedEvent,
	}, ev.MessageID)
	if err := p.send(ctx, newMsg(p.subject, data, hdr)); err != nil {
		return errors.WrapMsg(err, "publish message.created", "subject", p.subject, "message", ev.MessageID)
	}
	return nil
}
