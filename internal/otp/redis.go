package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as JSON under otp:<phone>. Keys expire with the
// record so Redis purges stale codes on its own.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func redisKey(phone string) string {
	return "otp:" + phone
}

func (s *RedisStore) Put(ctx context.Context, phone string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.rdb.Set(ctx, redisKey(phone), b, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, phone string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, redisKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode otp record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.rdb.Del(ctx, redisKey(phone)).Err()
}
