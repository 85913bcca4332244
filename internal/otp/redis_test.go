package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStorePutGetDelete(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	now := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	rec := Record{CodeHash: []byte("hash"), ExpiresAt: now.Add(TTL)}
	require.NoError(t, store.Put(ctx, testPhone, rec))

	assert.True(t, mr.Exists("otp:"+testPhone))
	assert.Equal(t, TTL, mr.TTL("otp:"+testPhone))

	got, err := store.Get(ctx, testPhone)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.CodeHash, got.CodeHash)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Delete(ctx, testPhone))
	got, err = store.Get(ctx, testPhone)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreKeyExpires(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Put(ctx, testPhone, Record{CodeHash: []byte("h"), ExpiresAt: now.Add(TTL)}))

	mr.FastForward(TTL + time.Second)

	got, err := store.Get(ctx, testPhone)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIssuerWithRedisStore(t *testing.T) {
	store, _ := newTestRedisStore(t)
	issuer, clock := newTestIssuer(store)
	store.now = clock.Now
	ctx := context.Background()

	code, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)

	require.NoError(t, issuer.Verify(ctx, testPhone, code))
	assert.ErrorIs(t, issuer.Verify(ctx, testPhone, code), ErrExpiredOrIncorrect)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), testPhone)
	assert.Error(t, err)
}
