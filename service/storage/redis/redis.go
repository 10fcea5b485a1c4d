package redis

import (
	"context"
	"time"

	errors "facegram/tools/errs"

	"github.com/redis/go-redis/v9"
)

// Config is used to build a Redis client.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient builds a client and pings it. The caller owns Close.
func NewClient(ctx context.Context, c Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.WrapMsg(err, "ping redis", "addr", c.Addr)
	}
	return rdb, nil
}
