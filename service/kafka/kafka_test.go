package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"facegram/module/chat/model"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBaseConfig(t *testing.T) {
	cfg := BuildBaseConfig(DefaultConfig([]string{"k:9092"}, "t"))
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Producer.Return.Successes)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionSnappy, cfg.Producer.Compression)
	assert.Equal(t, 5, cfg.Producer.Retry.Max)

	c := DefaultConfig(nil, "t")
	c.Compression = "unknown"
	c.Retries = 0
	cfg = BuildBaseConfig(c)
	assert.Equal(t, sarama.CompressionNone, cfg.Producer.Compression)
	assert.Equal(t, 1, cfg.Producer.Retry.Max)
}

func TestMessageProducer_Publish(t *testing.T) {
	sp := mocks.NewSyncProducer(t, BuildBaseConfig(DefaultConfig(nil, "chat")))
	ev := model.MessageCreated{
		MessageID:      "42",
		ConversationID: "7",
		Seq:            3,
		SenderID:       "alice",
		Content:        "hello",
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got model.MessageCreated
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.MessageID != ev.MessageID || got.Seq != ev.Seq || got.Content != ev.Content || !got.CreatedAt.Equal(ev.CreatedAt) {
			return stderrors.New("payload mismatch")
		}
		return nil
	})

	mp := newMessageProducer(sp, "chat")
	require.NoError(t, mp.Publish(context.Background(), ev))
	require.NoError(t, mp.Close())
}

func TestMessageProducer_PublishFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	mp := newMessageProducer(sp, "chat")
	err := mp.Publish(context.Background(), model.MessageCreated{MessageID: "1", ConversationID: "7"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, mp.Close())
}

func TestMessageProducer_CancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	mp := newMessageProducer(sp, "chat")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mp.Publish(ctx, model.MessageCreated{}), context.Canceled)
	require.NoError(t, mp.Close())
}

// fakeAdmin implements the three ClusterAdmin calls EnsureTopic makes.
type fakeAdmin struct {
	sarama.ClusterAdmin
	meta      []*sarama.TopicMetadata
	createErr error
	created   map[string]*sarama.TopicDetail
	expanded  int32
}

func (f *fakeAdmin) DescribeTopics([]string) ([]*sarama.TopicMetadata, error) { return f.meta, nil }

func (f *fakeAdmin) CreateTopic(topic string, d *sarama.TopicDetail, _ bool) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.created == nil {
		f.created = make(map[string]*sarama.TopicDetail)
	}
	f.created[topic] = d
	return nil
}

func (f *fakeAdmin) CreatePartitions(_ string, count int32, _ [][]int32, _ bool) error {
	f.expanded = count
	return nil
}

func TestEnsureTopic_Creates(t *testing.T) {
	admin := &fakeAdmin{meta: []*sarama.TopicMetadata{{Name: "chat", Err: sarama.ErrUnknownTopicOrPartition}}}
	require.NoError(t, EnsureTopic(admin, "chat", 8, 3))
	require.Contains(t, admin.created, "chat")
	assert.Equal(t, int32(8), admin.created["chat"].NumPartitions)
	assert.Equal(t, "2", *admin.created["chat"].ConfigEntries["min.insync.replicas"])
}

func TestEnsureTopic_CreateRaceIsFine(t *testing.T) {
	admin := &fakeAdmin{createErr: &sarama.TopicError{Err: sarama.ErrTopicAlreadyExists}}
	require.NoError(t, EnsureTopic(admin, "chat", 8, 1))
}

func TestEnsureTopic_Expands(t *testing.T) {
	admin := &fakeAdmin{meta: []*sarama.TopicMetadata{{
		Name:       "chat",
		Err:        sarama.ErrNoError,
		Partitions: []*sarama.PartitionMetadata{{ID: 0}, {ID: 1}},
	}}}
	require.NoError(t, EnsureTopic(admin, "chat", 4, 1))
	assert.Equal(t, int32(4), admin.expanded)
	assert.Empty(t, admin.created)

	admin.expanded = 0
	require.NoError(t, EnsureTopic(admin, "chat", 2, 1))
	assert.Zero(t, admin.expanded)
}
