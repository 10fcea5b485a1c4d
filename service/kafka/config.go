package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
)

// Config is the producer side of the message event bus.
type Config struct {
	Brokers           []string
	Topic             string
	Partitions        int32 // used when the topic has to be created
	ReplicationFactor int16
	Retries           int
	Compression       string // none/snappy/lz4/zstd
	Version           sarama.KafkaVersion
}

func DefaultConfig(brokers []string, topic string) Config {
	return Config{
		Brokers:           brokers,
		Topic:             topic,
		Partitions:        8,
		ReplicationFactor: 1,
		Retries:           5,
		Compression:       "snappy",
		Version:           sarama.V2_1_0_0,
	}
}

func BuildBaseConfig(c Config) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = c.Version
	cfg.ClientID = "facegram"

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.Retries <= 0 {
		c.Retries = 1
	}
	cfg.Producer.Retry.Max = c.Retries
	// the key is the conversation id, so one conversation stays on one partition
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}
