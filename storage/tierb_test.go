package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portnavigator/models"
)

func newTestTierB(t *testing.T) *TierB {
	t.Helper()
	tierB := NewTierB(t.TempDir(), zap.NewNop())
	require.NoError(t, tierB.Initialize(context.Background()))
	t.Cleanup(func() { tierB.Close() })
	return tierB
}

func testRequest(id, userID string, status models.RequestStatus, date time.Time) models.Request {
	return models.Request{
		RequestID: id,
		UserID:    userID,
		Type:      models.RequestWarehouse,
		Title:     "Warehouse rental",
		Status:    status,
		Date:      date,
	}
}

func TestTierBNotInitialized(t *testing.T) {
	ctx := context.Background()
	tierB := NewTierB(t.TempDir(), zap.NewNop())

	_, err := tierB.Requests(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = tierB.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, time.Now()))
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, _, err = tierB.GetBlob(ctx, CollectionMapData, "k")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestTierBInitializeIdempotent(t *testing.T) {
	ctx := context.Background()
	tierB := NewTierB(t.TempDir(), zap.NewNop())
	defer tierB.Close()

	require.NoError(t, tierB.Initialize(ctx))
	require.NoError(t, tierB.Initialize(ctx))

	require.NoError(t, tierB.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, time.Now())))
	got, err := tierB.Requests(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTierBRequestNotFoundIsNil(t *testing.T) {
	tierB := newTestTierB(t)
	// Absence is nil, nil. It must not look like ErrNotInitialized.
	r, err := tierB.Request(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestTierBRequestUpsert(t *testing.T) {
	ctx := context.Background()
	tierB := newTestTierB(t)

	r := testRequest("r1", "u1", models.StatusPending, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, tierB.AddRequest(ctx, r))

	r.Status = models.StatusInProgress
	require.NoError(t, tierB.AddRequest(ctx, r))

	got, err := tierB.Request(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusInProgress, got.Status)

	all, err := tierB.Requests(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert must replace, not duplicate")
}

func TestTierBRequestsByUserAndStatus(t *testing.T) {
	ctx := context.Background()
	tierB := newTestTierB(t)
	now := time.Now()

	require.NoError(t, tierB.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, now)))
	require.NoError(t, tierB.AddRequest(ctx, testRequest("r2", "u1", models.StatusApproved, now)))
	require.NoError(t, tierB.AddRequest(ctx, testRequest("r3", "u2", models.StatusPending, now)))

	byUser, err := tierB.RequestsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byStatus, err := tierB.RequestsByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
}

func TestTierBListOrderedByDate(t *testing.T) {
	ctx := context.Background()
	tierB := newTestTierB(t)

	require.NoError(t, tierB.AddRequest(ctx, testRequest("newer", "u1", models.StatusPending,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, tierB.AddRequest(ctx, testRequest("older", "u1", models.StatusPending,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	got, err := tierB.Requests(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "older", got[0].RequestID)
	assert.Equal(t, "newer", got[1].RequestID)
}

func TestTierBDeleteRequestsBefore(t *testing.T) {
	ctx := context.Background()
	tierB := newTestTierB(t)
	old := time.Now().AddDate(0, 0, -120)
	fresh := time.Now()

	require.NoError(t, tierB.AddRequest(ctx, testRequest("old-approved", "u1", models.StatusApproved, old)))
	require.NoError(t, tierB.AddRequest(ctx, testRequest("old-pending", "u1", models.StatusPending, old)))
	require.NoError(t, tierB.AddRequest(ctx, testRequest("fresh-approved", "u1", models.StatusApproved, fresh)))

	n, err := tierB.DeleteRequestsBefore(ctx, time.Now().AddDate(0, 0, -90), models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := tierB.Requests(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(remaining))
	for _, r := range remaining {
		ids = append(ids, r.RequestID)
	}
	assert.ElementsMatch(t, []string{"old-pending", "fresh-approved"}, ids)
}

func TestTierBBlobs(t *testing.T) {
	ctx := context.Background()
	tierB := newTestTierB(t)

	_, found, err := tierB.GetBlob(ctx, CollectionMapData, "harbor")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, tierB.PutBlob(ctx, CollectionMapData, "harbor", "v1"))
	require.NoError(t, tierB.PutBlob(ctx, CollectionMapData, "harbor", "v2"))

	value, found, err := tierB.GetBlob(ctx, CollectionMapData, "harbor")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", value)

	keys, err := tierB.BlobKeys(ctx, CollectionMapData)
	require.NoError(t, err)
	assert.Equal(t, []string{"harbor"}, keys)

	require.NoError(t, tierB.DeleteBlob(ctx, CollectionMapData, "harbor"))
	_, found, err = tierB.GetBlob(ctx, CollectionMapData, "harbor")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTierBClearCollections(t *testing.T) {
	ctx := context.Background()
	tierB := newTestTierB(t)

	require.NoError(t, tierB.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, time.Now())))
	require.NoError(t, tierB.PutBlob(ctx, CollectionMapCache, "png|x", "data"))
	require.NoError(t, tierB.ClearCollections(ctx))

	reqs, err := tierB.Requests(ctx)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	keys, err := tierB.BlobKeys(ctx, CollectionMapCache)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
