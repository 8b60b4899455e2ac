package service

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconciledCount(t *testing.T) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, promotionsReconciled.Write(m))
	return m.GetCounter().GetValue()
}

func TestReconciler_SweepCountsReconciled(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.promotions.On("SweepExpired", ctx, testNow).Return([]string{"p-1", "p-2", "p-3"}, nil)
	deps.promotions.On("AssignedListingIDs", ctx, "p-1").Return([]string{}, nil)
	deps.promotions.On("AssignedListingIDs", ctx, "p-2").Return([]string{}, nil)
	deps.promotions.On("AssignedListingIDs", ctx, "p-3").Return([]string{}, nil)

	before := reconciledCount(t)
	_, err := deps.reconciler.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, float64(3), reconciledCount(t)-before)
}
