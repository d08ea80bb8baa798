package sessionregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry backs each user's session set with a Redis sorted set,
// score = expiry epoch seconds, member = jti, per the
// security:sessions:v1:{username} layout. Lazy cleanup runs a ZREMRANGEBYSCORE
// ahead of every read.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry wraps client.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func sessionsKey(username string) string { return "security:sessions:v1:" + username }

func (r *RedisRegistry) RegisterSession(ctx context.Context, username, jti string, expiresAt time.Time) error {
	key := sessionsKey(username)
	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(expiresAt.Unix()), Member: jti})
	ttl := time.Until(expiresAt)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sessionregistry(redis): register: %w", err)
	}
	return nil
}

func (r *RedisRegistry) ActiveSessions(ctx context.Context, username string) ([]string, error) {
	key := sessionsKey(username)
	now := time.Now().Unix()
	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", now)).Err(); err != nil {
		return nil, fmt.Errorf("sessionregistry(redis): lazy cleanup: %w", err)
	}
	jtis, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: fmt.Sprintf("%d", now), Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("sessionregistry(redis): active sessions: %w", err)
	}
	return jtis, nil
}

func (r *RedisRegistry) RemoveSession(ctx context.Context, username, jti string) error {
	if err := r.client.ZRem(ctx, sessionsKey(username), jti).Err(); err != nil {
		return fmt.Errorf("sessionregistry(redis): remove session: %w", err)
	}
	return nil
}

func (r *RedisRegistry) RemoveAll(ctx context.Context, username string) error {
	if err := r.client.Del(ctx, sessionsKey(username)).Err(); err != nil {
		return fmt.Errorf("sessionregistry(redis): remove all: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Count(ctx context.Context, username string) (int, error) {
	jtis, err := r.ActiveSessions(ctx, username)
	if err != nil {
		return 0, err
	}
	return len(jtis), nil
}
