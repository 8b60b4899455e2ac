package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStore(client, "catalog:consumed:", ttl), mr
}

func TestRedisIdempotencyStore_ClaimConfirmRelease(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, claimLease, mr.TTL("catalog:consumed:evt-1"))

	ok, err = store.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Confirm(ctx, "evt-1"))
	assert.Equal(t, time.Hour, mr.TTL("catalog:consumed:evt-1"))

	require.NoError(t, store.Release(ctx, "evt-1"))
	assert.False(t, mr.Exists("catalog:consumed:evt-1"))
}

func TestRedisIdempotencyStore_LeaseExpires(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Claim(ctx, "evt-2")
	require.NoError(t, err)
	mr.FastForward(claimLease + time.Second)

	ok, err := store.Claim(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	mr.Close()

	_, err := store.Claim(context.Background(), "evt-3")
	assert.Error(t, err)
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)
	ctx := context.Background()

	ok, _ := store.Claim(ctx, "evt-expire")
	require.True(t, ok)
	require.NoError(t, store.Confirm(ctx, "evt-expire"))
	ok, _ = store.Claim(ctx, "evt-expire")
	assert.False(t, ok)

	time.Sleep(20 * time.Millisecond)
	ok, _ = store.Claim(ctx, "evt-expire")
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())
}

// ---------------------------------------------------------------------------
// IdempotentHandler
// ---------------------------------------------------------------------------

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-dup", EventType: "order.canceled"}
	require.NoError(t, h(context.Background(), event))
	require.NoError(t, h(context.Background(), event))

	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-retry"}
	assert.Error(t, h(context.Background(), event))
	assert.NoError(t, h(context.Background(), event))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_NoEventIDPassesThrough(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	_ = h(context.Background(), &Event{})
	_ = h(context.Background(), &Event{})
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, store.Len())
}
