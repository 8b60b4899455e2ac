package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalog/internal/domain"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

const (
	keyPrefix = "catalog:listing:"
	genPrefix = "catalog:listing-gen:"

	// genTTL outlives any snapshot load by a wide margin; a counter that
	// expires simply restarts at zero.
	genTTL = 24 * time.Hour
)

// setIfGeneration stores a snapshot only while the listing's invalidation
// counter still holds the value the caller read before loading it.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// ListingCache implements repository.ListingCache using Redis. It stores the
// listing, its catalog entry and its promotion candidates; resolved prices
// are never cached.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache creates a new Redis-backed listing snapshot cache.
func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	return &ListingCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a listing snapshot by listing ID.
func (c *ListingCache) Get(ctx context.Context, id string) (*domain.ListingDetail, error) {
	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cached listing", id)
		}
		return nil, fmt.Errorf("redis get listing: %w", err)
	}

	var detail domain.ListingDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("unmarshal listing: %w", err)
	}
	return &detail, nil
}

// Generation returns the invalidation counter of a listing. Read it before
// loading a snapshot from the store and hand it back to Set.
func (c *ListingCache) Generation(ctx context.Context, id string) (int64, error) {
	gen, err := c.client.Get(ctx, genPrefix+id).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get listing generation: %w", err)
	}
	return gen, nil
}

// Set stores a listing snapshot with the configured TTL, unless the listing
// was invalidated after gen was read. A skipped write is not an error.
func (c *ListingCache) Set(ctx context.Context, detail *domain.ListingDetail, gen int64) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}

	id := detail.Listing.ID
	keys := []string{keyPrefix + id, genPrefix + id}
	if err := setIfGeneration.Run(ctx, c.client, keys, data, gen, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set listing: %w", err)
	}
	return nil
}

// Delete removes the snapshots of the given listings and bumps their
// invalidation counters so in-flight loads do not write them back.
func (c *ListingCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, keys...)
	for _, id := range ids {
		pipe.Incr(ctx, genPrefix+id)
		pipe.Expire(ctx, genPrefix+id, genTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis del listings: %w", err)
	}
	return nil
}
