package kafka

import (
	"context"
	"encoding/json"

	"facegram/module/chat/model"
	errors "facegram/tools/errs"

	"github.com/Shopify/sarama"
)

// MessageProducer publishes message.created events to one topic.
type MessageProducer struct {
	p      sarama.SyncProducer
	client sarama.Client
	topic  string
}

// NewMessageProducer connects to the brokers, makes sure the topic exists
// and returns a producer for it.
func NewMessageProducer(c Config) (*MessageProducer, error) {
	client, err := sarama.NewClient(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return nil, errors.WrapMsg(err, "kafka client", "brokers", c.Brokers)
	}
	admin, err := sarama.NewClusterAdminFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errors.WrapMsg(err, "kafka admin")
	}
	if err := EnsureTopic(admin, c.Topic, c.Partitions, c.ReplicationFactor); err != nil {
		_ = client.Close()
		return nil, err
	}
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errors.WrapMsg(err, "kafka producer")
	}
	mp := newMessageProducer(p, c.Topic)
	mp.client = client
	return mp, nil
}

func newMessageProducer(p sarama.SyncProducer, topic string) *MessageProducer {
	return &MessageProducer{p: p, topic: topic}
}

// Publish blocks until the brokers acknowledged the event. The sync producer
// has no per-call deadline, so ctx is only checked before sending.
func (mp *MessageProducer) Publish(ctx context.Context, ev model.MessageCreated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapMsg(err, "encode message.created")
	}
	_, _, err = mp.p.SendMessage(&sarama.ProducerMessage{
		Topic: mp.topic,
		Key:   sarama.StringEncoder(ev.ConversationID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(model.MessageCreatedEvent)},
		},
	})
	if err != nil {
		return errors.WrapMsg(err, "produce message.created", "topic", mp.topic, "message", ev.MessageID)
	}
	return nil
}

// Close closes the producer and the client it was built from.
func (mp *MessageProducer) Close() error {
	err := mp.p.Close()
	if mp.client != nil {
		if cerr := mp.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
