package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes.
const (
	outcomeApplied = "applied"
	outcomeNone    = "none"
	outcomeError   = "error"
)

var (
	// promotionResolutions counts listing price resolutions by outcome.
	promotionResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_promotion_resolutions_total",
			Help: "Total number of listing price resolutions by outcome (applied, none, error)",
		},
		[]string{"outcome"},
	)

	// promotionsReconciled counts promotions flipped to inactive after their end date.
	promotionsReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_promotions_reconciled_total",
			Help: "Total number of expired promotions switched to inactive",
		},
	)
)
