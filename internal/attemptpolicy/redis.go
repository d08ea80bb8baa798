package attemptpolicy

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// registerAttemptScript executes the whole check-and-set as a single
// Lua script so steps 1-3 of the component design run atomically
// against Redis; non-atomic INCR-then-EXPIRE is explicitly forbidden by
// the spec.
//
// KEYS[1] = block key, KEYS[2] = counter key
// ARGV[1] = maxAttempts, ARGV[2] = windowSeconds, ARGV[3] = blockSeconds
//
// Returns {blocked(0/1), retryAfterSeconds}.
var registerAttemptScript = redis.NewScript(`
local blockTTL = redis.call("PTTL", KEYS[1])
if blockTTL > 0 then
	return {1, math.ceil(blockTTL / 1000)}
end

local attempts = redis.call("INCR", KEYS[2])
if attempts == 1 then
	redis.call("EXPIRE", KEYS[2], ARGV[2])
end

if attempts > tonumber(ARGV[1]) then
	redis.call("SET", KEYS[1], "1", "EX", ARGV[3])
	redis.call("DEL", KEYS[2])
	return {1, tonumber(ARGV[3])}
end

return {0, 0}
`)

// RedisPolicy implements Policy against Redis, keeping the counter
// under login:attempts:{key} and the lockout under login:block:{key}.
type RedisPolicy struct {
	client        *redis.Client
	maxAttempts   int
	window        time.Duration
	blockDuration time.Duration
}

// NewRedisPolicy builds a RedisPolicy with the given parameters.
func NewRedisPolicy(client *redis.Client, maxAttempts int, window, blockDuration time.Duration) *RedisPolicy {
	return &RedisPolicy{client: client, maxAttempts: maxAttempts, window: window, blockDuration: blockDuration}
}

func attemptsKey(key string) string { return "login:attempts:" + key }
func blockKey(key string) string    { return "login:block:" + key }

func (p *RedisPolicy) RegisterAttempt(ctx context.Context, key string) (Outcome, error) {
	res, err := registerAttemptScript.Run(ctx, p.client,
		[]string{blockKey(key), attemptsKey(key)},
		p.maxAttempts, int64(p.window.Seconds()), int64(p.blockDuration.Seconds()),
	).Result()
	if err != nil {
		return Outcome{}, fmt.Errorf("attemptpolicy(redis): register attempt: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return Outcome{}, fmt.Errorf("attemptpolicy(redis): unexpected script result %#v", res)
	}
	blocked, _ := vals[0].(int64)
	retryAfter, _ := vals[1].(int64)

	return Outcome{Blocked: blocked == 1, RetryAfterSeconds: retryAfter}, nil
}

func (p *RedisPolicy) ResetAttempts(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, attemptsKey(key), blockKey(key)).Err(); err != nil {
		return fmt.Errorf("attemptpolicy(redis): reset attempts: %w", err)
	}
	return nil
}
