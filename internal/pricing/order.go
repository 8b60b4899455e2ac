package pricing

import (
	"cmp"
	"slices"
	"time"

	"github.com/utafrali/catalog/internal/domain"
)

// SortCandidates orders candidates the way the listing queries do: promotion
// start date ascending with open starts first, then creation time, then id.
// The first eligible candidate after sorting wins.
func SortCandidates(candidates []domain.PromotionCandidate) {
	slices.SortStableFunc(candidates, func(a, b domain.PromotionCandidate) int {
		if c := compareStart(a.Promotion.StartDate, b.Promotion.StartDate); c != 0 {
			return c
		}
		if c := a.Promotion.CreatedAt.Compare(b.Promotion.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Promotion.ID, b.Promotion.ID)
	})
}

func compareStart(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// Expired returns the ids of promotions that are still marked active but
// whose own end date is before now. Overrides are ignored: a custom window on
// one listing does not keep the promotion alive for the others.
func Expired(candidates []domain.PromotionCandidate, now time.Time) []string {
	var ids []string
	seen := make(map[string]struct{})
	for i := range candidates {
		p := &candidates[i].Promotion
		if p.Status != domain.StatusActive || p.EndDate == nil || !p.EndDate.Before(now) {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids
}
