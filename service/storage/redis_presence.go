package storage

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// presence key: im:presence:<user>
// Value: node id, the TTL bounds how long a crashed node's users look online
func presenceKey(user string) string { return "im:presence:" + user }

// RedisPresence mirrors the hub's online set into Redis for other services
// to read. It is never consulted by the hub itself.
type RedisPresence struct {
	rdb redis.Cmdable
}

func NewRedisPresence(rdb redis.Cmdable) *RedisPresence {
	return &RedisPresence{rdb: rdb}
}

// SetOnline sets the user as online and renews the TTL.
func (p *RedisPresence) SetOnline(ctx context.Context, user, node string, ttl time.Duration) error {
	return p.rdb.Set(ctx, presenceKey(user), node, ttl).Err()
}

// SetOffline deletes the key.
func (p *RedisPresence) SetOffline(ctx context.Context, user string) error {
	return p.rdb.Del(ctx, presenceKey(user)).Err()
}

// Lookup reports which node holds user, if any.
func (p *RedisPresence) Lookup(ctx context.Context, user string) (node string, online bool, err error) {
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
