// Package service holds the catalog business logic: listing materialization
// with promotion pricing, promotion management, purchases and reporting.
package service

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// AssetCleaner removes the media assets registered for an owner.
type AssetCleaner interface {
	DeleteByOwner(ctx context.Context, ownerType, ownerID string) (int, error)
}

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// normalizePage clamps paging parameters to sane bounds.
func normalizePage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// cleanupAssets deletes the owner's media assets, logging instead of failing.
func cleanupAssets(ctx context.Context, cleaner AssetCleaner, logger *slog.Logger, ownerType, ownerID string) {
	n, err := cleaner.DeleteByOwner(ctx, ownerType, ownerID)
	if err != nil {
		logger.WarnContext(ctx, "failed to clean up media assets",
			slog.String("owner_type", ownerType),
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		logger.InfoContext(ctx, "media assets deleted",
			slog.String("owner_type", ownerType),
			slog.String("owner_id", ownerID),
			slog.Int("count", n),
		)
	}
}
