package natsx

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

func ToHeader(h map[string]string) nats.Header {
	hd := nats.Header{}
	for k, v := range h {
		hd.Set(k, v)
	}
	return hd
}

func newMsg(subject string, data []byte, hdr map[string]string) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header = ToHeader(hdr)
	return msg
}

// send publishes msg the way the client was configured to.
func (c *NatsxClient) send(ctx context.Context, msg *nats.Msg) error {
	if c.js == nil {
		if err := c.nc.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
		return nil
	}
	if _, err := c.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}
