package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/repository"
)

// Reconciler switches promotions whose end date has passed to inactive.
// Pricing never depends on it; an ended promotion is already ignored by date.
type Reconciler struct {
	promotions repository.PromotionRepository
	cache      repository.ListingCache
	producer   *event.Producer
	logger     *slog.Logger
	now        Clock
}

// NewReconciler creates a new promotion expiry reconciler.
func NewReconciler(promotions repository.PromotionRepository, cache repository.ListingCache, producer *event.Producer, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		promotions: promotions,
		cache:      cache,
		producer:   producer,
		logger:     logger,
		now:        systemClock,
	}
}

// Correct expires the given promotions found ended during a read. Failures
// are logged and never surface to the reader.
func (r *Reconciler) Correct(ctx context.Context, ids []string, now time.Time) {
	if len(ids) == 0 {
		return
	}

	expired, err := r.promotions.ExpireActive(ctx, ids, now)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to expire ended promotions",
			slog.Any("promotion_ids", ids),
			slog.String("error", err.Error()),
		)
		return
	}
	r.expired(ctx, expired, now)
}

// Sweep expires every active promotion that has ended and returns how many
// were switched.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	expired, err := r.promotions.SweepExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired promotions: %w", err)
	}
	r.expired(ctx, expired, now)
	return len(expired), nil
}

// Run sweeps every interval until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("promotion reconcile error", slog.String("error", err.Error()))
			}
		}
	}
}

// InvalidatePromotions drops the cached snapshots of every listing assigned
// to the given promotions.
func (r *Reconciler) InvalidatePromotions(ctx context.Context, promotionIDs ...string) {
	for _, id := range promotionIDs {
		listingIDs, err := r.promotions.AssignedListingIDs(ctx, id)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to load assigned listings for cache invalidation",
				slog.String("promotion_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		invalidate(ctx, r.cache, r.logger, listingIDs...)
	}
}

func (r *Reconciler) expired(ctx context.Context, ids []string, now time.Time) {
	if len(ids) == 0 {
		return
	}
	promotionsReconciled.Add(float64(len(ids)))
	r.InvalidatePromotions(ctx, ids...)

	if err := r.producer.PublishPromotionExpired(ctx, ids, now); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish promotion_expired event",
			slog.String("error", err.Error()),
		)
	}

	r.logger.InfoContext(ctx, "expired promotions switched to inactive",
		slog.Any("promotion_ids", ids),
	)
}

// invalidate removes listing snapshots, logging instead of failing.
func invalidate(ctx context.Context, cache repository.ListingCache, logger *slog.Logger, listingIDs ...string) {
	if len(listingIDs) == 0 {
		return
	}
	if err := cache.Delete(ctx, listingIDs...); err != nil {
		logger.WarnContext(ctx, "failed to invalidate listing cache",
			slog.Any("listing_ids", listingIDs),
			slog.String("error", err.Error()),
		)
	}
}
