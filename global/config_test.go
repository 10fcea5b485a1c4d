package global

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, EventBusNone, cfg.EventBus)
	require.Equal(t, 256, cfg.SendQueueSize)
	require.True(t, cfg.CloseReplaced)
	require.Equal(t, 25*time.Second, cfg.PingInterval)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.Origins())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EVENT_BUS", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SEND_QUEUE_SIZE", "8")
	t.Setenv("CLOSE_REPLACED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, EventBusKafka, cfg.EventBus)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	require.Equal(t, 8, cfg.SendQueueSize)
	require.False(t, cfg.CloseReplaced)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EVENT_BUS", "rabbit")

	_, err := Load()
	require.ErrorContains(t, err, "EVENT_BUS")
}

func TestValidate(t *testing.T) {
	base := Config{EventBus: EventBusNone, SendQueueSize: 1, PingInterval: time.Second, PongWait: 2 * time.Second}
	require.NoError(t, base.Validate())

	c := base
	c.AuthRequired = true
	require.Error(t, c.Validate())

	c = base
	c.PingInterval = 3 * time.Second
	require.Error(t, c.Validate())

	c = base
	c.NodeID = 2048
	require.Error(t, c.Validate())

	c = base
	c.SendQueueSize = 0
	require.Error(t, c.Validate())
}

func TestValidate_KafkaTopicShape(t *testing.T) {
	c := Config{EventBus: EventBusKafka, SendQueueSize: 1, PingInterval: time.Second, PongWait: 2 * time.Second}
	require.ErrorContains(t, c.Validate(), "KAFKA_PARTITIONS")

	c.KafkaPartitions, c.KafkaReplication = 8, 1
	require.NoError(t, c.Validate())
}
