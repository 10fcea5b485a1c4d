package global

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	EventBusNone  = "none"
	EventBusNats  = "nats"
	EventBusKafka = "kafka"
)

// Config is the whole process configuration, read from the environment
// (and from a .env file in the working directory when one exists).
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	GRPCAddr string `env:"GRPC_ADDR,default=:50052"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
	NodeID   int64  `env:"NODE_ID,default=1"`

	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`
	PresenceTTL   time.Duration `env:"PRESENCE_TTL,default=2h"`

	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE,default=facegram"`

	EventBus     string `env:"EVENT_BUS,default=none"`
	NatsURL      string `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	NatsSubject  string `env:"NATS_SUBJECT,default=chat.message.created"`
	NatsMode     string `env:"NATS_MODE,default=core"`
	KafkaBrokers string `env:"KAFKA_BROKERS,default=127.0.0.1:9092"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=chat_message_created"`

	// topic is created on start when missing
	KafkaPartitions  int `env:"KAFKA_PARTITIONS,default=8"`
	KafkaReplication int `env:"KAFKA_REPLICATION,default=1"`

	JWTSecret      string `env:"JWT_SECRET"`
	AuthRequired   bool   `env:"AUTH_REQUIRED,default=false"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:5173"`

	SendQueueSize   int           `env:"SEND_QUEUE_SIZE,default=256"`
	CloseReplaced   bool          `env:"CLOSE_REPLACED,default=true"`
	PingInterval    time.Duration `env:"PING_INTERVAL,default=25s"`
	PongWait        time.Duration `env:"PONG_WAIT,default=60s"`
	WriteWait       time.Duration `env:"WRITE_WAIT,default=10s"`
	MaxMessageBytes int64         `env:"MAX_MESSAGE_BYTES,default=65536"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.EventBus {
	case EventBusNone, EventBusNats, EventBusKafka:
	default:
		return fmt.Errorf("EVENT_BUS must be one of none|nats|kafka, got %q", c.EventBus)
	}
	if c.AuthRequired && c.JWTSecret == "" {
		return errors.New("AUTH_REQUIRED needs JWT_SECRET")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", c.SendQueueSize)
	}
	if c.PingInterval >= c.PongWait {
		return fmt.Errorf("PING_INTERVAL (%s) must be shorter than PONG_WAIT (%s)", c.PingInterval, c.PongWait)
	}
	if c.EventBus == EventBusKafka && (c.KafkaPartitions <= 0 || c.KafkaReplication <= 0) {
		return fmt.Errorf("KAFKA_PARTITIONS and KAFKA_REPLICATION must be positive")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be within 0..1023, got %d", c.NodeID)
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS. A single "*" allows every origin.
func (c Config) Origins() []string {
	return splitCSV(c.AllowedOrigins)
}

func (c Config) Brokers() []string {
	return splitCSV(c.KafkaBrokers)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
