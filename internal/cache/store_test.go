package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"visitagent/internal/config"
	"visitagent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "cache.db"), &config.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func sampleTargets() []models.VisitTarget {
	return []models.VisitTarget{
		{ID: "o1", Code: "OUT-001", Name: "Toko Maju", District: "Menteng", CoordinateString: "-6.2,106.8", RadiusMeters: 100},
		{ID: "o2", Code: "OUT-002", Name: "Toko Jaya", District: "Senen", CoordinateString: "-6.21,106.82", RadiusMeters: 50},
	}
}

func TestOutletRoundTripKeepsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceOutlets(ctx, "search:toko", sampleTargets()))

	got, err := store.Outlets(ctx, "search:toko")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "OUT-001", got[0].Code)
	assert.Equal(t, "OUT-002", got[1].Code)
	assert.Equal(t, "-6.2,106.8", got[0].CoordinateString)
	assert.Equal(t, 50.0, got[1].RadiusMeters)
}

func TestReplaceOutletsDropsStaleRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceOutlets(ctx, "search:toko", sampleTargets()))
	require.NoError(t, store.ReplaceOutlets(ctx, "search:toko", sampleTargets()[:1]))

	got, err := store.Outlets(ctx, "search:toko")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OUT-001", got[0].Code)
}

func TestOutletQueryKeysAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceOutlets(ctx, "search:maju", sampleTargets()[:1]))
	require.NoError(t, store.ReplaceOutlets(ctx, "search:jaya", sampleTargets()[1:]))

	maju, err := store.Outlets(ctx, "search:maju")
	require.NoError(t, err)
	require.Len(t, maju, 1)
	assert.Equal(t, "OUT-001", maju[0].Code)

	empty, err := store.Outlets(ctx, "search:warung")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPlanVisitRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

	targets := sampleTargets()
	targets[0].ScheduledVisitID = "pv1"
	targets[1].ScheduledVisitID = "pv2"

	require.NoError(t, store.ReplacePlanVisits(ctx, day, targets))

	// Any time on the same day hits the same bucket.
	got, err := store.PlanVisits(ctx, time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pv1", got[0].ScheduledVisitID)
	assert.True(t, got[0].Scheduled())

	other, err := store.PlanVisits(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, other)
}
