package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimLease bounds how long an in-flight claim blocks redeliveries if the
// process dies before confirming or releasing it.
const claimLease = 5 * time.Minute

// IdempotencyStore deduplicates events by ID across redeliveries.
type IdempotencyStore interface {
	// Claim reserves eventID for processing. It returns false when the ID is
	// already claimed or done.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Confirm marks a claimed ID as processed for the store's full TTL.
	Confirm(ctx context.Context, eventID string) error
	// Release drops a claim so the event can be processed again.
	Release(ctx context.Context, eventID string) error
}

// RedisIdempotencyStore keeps claims as prefixed keys shared by every replica
// of a consumer group.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) Claim(ctx context.Context, eventID string) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+eventID, "processing", min(claimLease, s.ttl)).Result()
}

func (s *RedisIdempotencyStore) Confirm(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, s.prefix+eventID, "done", s.ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, s.prefix+eventID).Err()
}

// MemoryIdempotencyStore is a single-process IdempotencyStore for tests and
// local runs. Expired entries are dropped on the next Claim.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[string]time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{ttl: ttl, expires: make(map[string]time.Time)}
}

func (s *MemoryIdempotencyStore) Claim(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, at := range s.expires {
		if now.After(at) {
			delete(s.expires, id)
		}
	}
	if _, held := s.expires[eventID]; held {
		return false, nil
	}
	s.expires[eventID] = now.Add(min(claimLease, s.ttl))
	return true, nil
}

func (s *MemoryIdempotencyStore) Confirm(_ context.Context, eventID string) error {
	s.mu.Lock()
	s.expires[eventID] = time.Now().Add(s.ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	delete(s.expires, eventID)
	s.mu.Unlock()
	return nil
}

// Len counts held IDs, expired ones included until the next Claim.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

// IdempotentHandler runs inner at most once per EventID. A failed run
// releases its claim so the consumer's retry or a redelivery can try again.
// Events without an ID and store outages fall through to inner.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}
		attrs := []any{slog.String("event_id", event.EventID), slog.String("event_type", event.EventType)}

		claimed, err := store.Claim(ctx, event.EventID)
		if err != nil {
			logger.WarnContext(ctx, "idempotency claim failed, processing anyway",
				append(attrs, slog.String("error", err.Error()))...)
			return inner(ctx, event)
		}
		if !claimed {
			consumerDuplicates.WithLabelValues(event.EventType).Inc()
			logger.DebugContext(ctx, "duplicate event skipped", attrs...)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			if relErr := store.Release(ctx, event.EventID); relErr != nil {
				logger.WarnContext(ctx, "idempotency release failed",
					append(attrs, slog.String("error", relErr.Error()))...)
			}
			return err
		}
		if err := store.Confirm(ctx, event.EventID); err != nil {
			logger.WarnContext(ctx, "idempotency confirm failed",
				append(attrs, slog.String("error", err.Error()))...)
		}
		return nil
	}
}
