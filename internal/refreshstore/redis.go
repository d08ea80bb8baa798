package refreshstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
)

const minRedisTTL = time.Second

// RedisStore is the primary C4 backend: refresh-token records as Redis
// hashes with native TTL expiry, a per-family revocation tombstone for
// O(1) family-wide revocation, and a per-user set for session/family
// enumeration.
type RedisStore struct {
	client *redis.Client
	issuer string
}

// NewRedisStore binds a RedisStore to client, namespacing the atomic
// consume marker under issuer per the persisted key layout.
func NewRedisStore(client *redis.Client, issuer string) *RedisStore {
	return &RedisStore{client: client, issuer: issuer}
}

func recordKey(jti string) string       { return "security:refresh:record:" + jti }
func familyRevokedKey(f string) string  { return "security:refresh:family:revoked:" + f }
func userIndexKey(username string) string { return "security:refresh:userindex:" + username }
func consumeKey(issuer, jti string) string {
	return "security:refresh:consumed:" + issuer + ":" + jti
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl < minRedisTTL {
		ttl = minRedisTTL
	}

	key := recordKey(rec.JTI)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"username":    rec.Username,
		"familyId":    rec.FamilyID,
		"previousJti": rec.PreviousJti,
		"revoked":     strconv.FormatBool(rec.Revoked),
		"issuedAt":    rec.IssuedAt.Unix(),
		"expiresAt":   rec.ExpiresAt.Unix(),
	})
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, userIndexKey(rec.Username), rec.JTI)
	pipe.Expire(ctx, userIndexKey(rec.Username), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refreshstore(redis): save: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByJti(ctx context.Context, jti string) (Record, error) {
	vals, err := s.client.HGetAll(ctx, recordKey(jti)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("refreshstore(redis): find: %w", err)
	}
	if len(vals) == 0 {
		return Record{}, ErrNotFound
	}

	rec, err := recordFromMap(jti, vals)
	if err != nil {
		return Record{}, err
	}

	if !rec.Revoked {
		revoked, err := s.client.Exists(ctx, familyRevokedKey(rec.FamilyID)).Result()
		if err != nil {
			return Record{}, fmt.Errorf("refreshstore(redis): family check: %w", err)
		}
		rec.Revoked = revoked > 0
	}

	return rec, nil
}

func (s *RedisStore) Revoke(ctx context.Context, jti string) error {
	key := recordKey(jti)
	ttl := s.client.TTL(ctx, key).Val()
	if ttl <= 0 {
		ttl = minRedisTTL
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "revoked", strconv.FormatBool(true))
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refreshstore(redis): revoke: %w", err)
	}
	return nil
}

// RevokeFamily writes a single tombstone key; FindByJti consults it on
// every read, so after this call returns no later FindByJti for any
// member of familyID can observe revoked=false.
func (s *RedisStore) RevokeFamily(ctx context.Context, familyID string) error {
	const familyRevocationTTL = 30 * 24 * time.Hour
	if err := s.client.Set(ctx, familyRevokedKey(familyID), "1", familyRevocationTTL).Err(); err != nil {
		return fmt.Errorf("refreshstore(redis): revoke family: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteAllForUser(ctx context.Context, username string) error {
	jtis, err := s.client.SMembers(ctx, userIndexKey(username)).Result()
	if err != nil {
		return fmt.Errorf("refreshstore(redis): list user jtis: %w", err)
	}
	if len(jtis) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, jti := range jtis {
		pipe.Del(ctx, recordKey(jti))
	}
	pipe.Del(ctx, userIndexKey(username))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refreshstore(redis): delete all for user: %w", err)
	}
	return nil
}

func (s *RedisStore) FindAllForUser(ctx context.Context, username string) ([]string, error) {
	jtis, err := s.client.SMembers(ctx, userIndexKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("refreshstore(redis): find all for user: %w", err)
	}
	return jtis, nil
}

// DeleteExpired is a no-op for Redis: record and index keys carry their
// own TTL and expire natively. Kept to satisfy the Store contract for
// backends (Postgres, Mongo, memory) that lack native expiry.
func (s *RedisStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) ConsumeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl < minRedisTTL {
		ttl = minRedisTTL
	}
	ok, err := s.client.SetNX(ctx, consumeKey(s.issuer, jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("refreshstore(redis): consume once: %w", err)
	}
	if !ok {
		logx.WithContext(ctx).Infof("refreshstore(redis): consume marker already set for jti=%s", jti)
	}
	return ok, nil
}

func recordFromMap(jti string, vals map[string]string) (Record, error) {
	issuedAt, err := strconv.ParseInt(vals["issuedAt"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("refreshstore(redis): malformed issuedAt for jti=%s: %w", jti, err)
	}
	expiresAt, err := strconv.ParseInt(vals["expiresAt"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("refreshstore(redis): malformed expiresAt for jti=%s: %w", jti, err)
	}
	revoked, _ := strconv.ParseBool(vals["revoked"])

	return Record{
		JTI:         jti,
		Username:    vals["username"],
		FamilyID:    vals["familyId"],
		PreviousJti: vals["previousJti"],
		Revoked:     revoked,
		IssuedAt:    time.Unix(issuedAt, 0).UTC(),
		ExpiresAt:   time.Unix(expiresAt, 0).UTC(),
	}, nil
}
