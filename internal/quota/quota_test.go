package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemainingClampsAtZero(t *testing.T) {
	limits := PlanLimits{MonthlyMinutes: 10, MonthlyMinutesUsed: 15}
	require.Equal(t, 0.0, limits.Remaining())
}

func TestInMemoryGrantsFixedAllowance(t *testing.T) {
	p := NewInMemory(100)
	limits, err := p.PlanLimits(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 100.0, limits.MonthlyMinutes)
	require.Equal(t, 0.0, limits.MonthlyMinutesUsed)
}

func TestInMemoryRecordsUsagePerUser(t *testing.T) {
	p := NewInMemory(100)
	require.NoError(t, p.RecordUsage(context.Background(), "user-1", 30))
	require.NoError(t, p.RecordUsage(context.Background(), "user-1", 20))

	limits, err := p.PlanLimits(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 50.0, limits.MonthlyMinutesUsed)
	require.Equal(t, 50.0, limits.Remaining())
}

func TestInMemoryUsageIsolatedPerUser(t *testing.T) {
	p := NewInMemory(100)
	require.NoError(t, p.RecordUsage(context.Background(), "user-1", 40))

	limits, err := p.PlanLimits(context.Background(), "user-2")
	require.NoError(t, err)
	require.Equal(t, 0.0, limits.MonthlyMinutesUsed)
}

func TestInMemoryPlanTierDefaultsToFree(t *testing.T) {
	p := NewInMemory(100)
	limits, err := p.PlanLimits(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "free", limits.PlanTier)
}

func TestInMemoryPlanTierHonorsSetPlanTier(t *testing.T) {
	p := NewInMemory(100)
	p.SetPlanTier("user-1", "pro")

	limits, err := p.PlanLimits(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "pro", limits.PlanTier)
}
