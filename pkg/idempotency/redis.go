package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Locker and Store on top of SET NX.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore namespaces every key with prefix, e.g. "castflow:idem:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) lockKey(key string) string   { return s.prefix + "lock:" + key }
func (s *RedisStore) recordKey(key string) string { return s.prefix + "rec:" + key }

func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	ok, err := s.client.SetNX(ctx, s.lockKey(key), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: acquire %q: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency: load %q: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("idempotency: decode %q: %w", key, err)
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	if rec.Key == "" {
		return ErrEmptyKey
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("idempotency: encode %q: %w", rec.Key, err)
	}
	ok, err := s.client.SetNX(ctx, s.recordKey(rec.Key), raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("idempotency: save %q: %w", rec.Key, err)
	}
	if !ok {
		return ErrRecordExists
	}
	return nil
}
