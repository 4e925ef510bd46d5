package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portnavigator/cache"
	"portnavigator/models"
	"portnavigator/storage"
)

var adminUser = &models.User{
	UserID: "user-admin", Username: "admin", Role: models.RoleAdmin,
}

type adminFixture struct {
	store   *storage.Service
	assets  *cache.Manager
	handler *AdminHandler
}

func newAdminFixture(t *testing.T, client *http.Client) *adminFixture {
	t.Helper()
	store := newTestStore(t)
	assets := cache.NewManager(store.TierB(), client, zap.NewNop())
	require.NoError(t, assets.Initialize(context.Background()))
	monitor := storage.NewMonitor(store, zap.NewNop(), time.Hour, time.Hour, nil)
	return &adminFixture{
		store:   store,
		assets:  assets,
		handler: NewAdminHandler(store, monitor, assets, zap.NewNop(), 90),
	}
}

// cacheOccupancy refreshes and returns the images snapshot entry.
func cacheOccupancy(t *testing.T, assets *cache.Manager) cache.Info {
	t.Helper()
	assets.RefreshInfo(context.Background())
	info, ok := assets.InfoSnapshot()[cache.CategoryImages]
	require.True(t, ok)
	return info
}

func TestClearAllResetsAssetCacheAccounting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	f := newAdminFixture(t, srv.Client())
	_, err := f.assets.Fetch(context.Background(), srv.URL+"/berths/overview.png")
	require.NoError(t, err)
	require.NotZero(t, cacheOccupancy(t, f.assets).Entries)

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/admin/clear", nil), adminUser)
	rec := httptest.NewRecorder()
	f.handler.ClearAll(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The wipe must not leave stale occupancy behind.
	info := cacheOccupancy(t, f.assets)
	assert.Zero(t, info.Entries)
	assert.Zero(t, info.UsedBytes)
}

func TestImportResetsAssetCacheAccounting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	f := newAdminFixture(t, srv.Client())
	doc, err := f.store.ExportData(context.Background())
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = f.assets.Fetch(context.Background(), srv.URL+"/berths/overview.png")
	require.NoError(t, err)
	require.NotZero(t, cacheOccupancy(t, f.assets).Entries)

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/admin/import", bytes.NewReader(raw)), adminUser)
	rec := httptest.NewRecorder()
	f.handler.Import(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	info := cacheOccupancy(t, f.assets)
	assert.Zero(t, info.Entries)
	assert.Zero(t, info.UsedBytes)
}
