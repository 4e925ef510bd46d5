package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portnavigator/models"
)

func TestKVSetGet(t *testing.T) {
	dir := t.TempDir()
	kv := NewKV(dir, zap.NewNop())

	settings := models.Settings{Language: "ar", Theme: "dark", Notifications: true}
	require.NoError(t, kv.Set(KeySettings, settings))

	var got models.Settings
	require.True(t, kv.Get(KeySettings, &got))
	assert.Equal(t, settings, got)

	// A fresh instance reading the same directory sees the persisted value.
	reopened := NewKV(dir, zap.NewNop())
	got = models.Settings{}
	require.True(t, reopened.Get(KeySettings, &got))
	assert.Equal(t, settings, got)
}

func TestKVGetAbsent(t *testing.T) {
	kv := NewKV(t.TempDir(), zap.NewNop())
	var out models.Settings
	assert.False(t, kv.Get(KeySettings, &out))
}

func TestKVCorruptSnapshotReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tier_a.json"), []byte("{{{ not json"), 0o644))

	kv := NewKV(dir, zap.NewNop())
	var out models.Settings
	assert.False(t, kv.Get(KeySettings, &out))
	assert.Empty(t, kv.Keys())
}

func TestKVCorruptValueTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	snapshot := `{"` + KeySettings + `": "this is not a settings object"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tier_a.json"), []byte(snapshot), 0o644))

	kv := NewKV(dir, zap.NewNop())
	var out models.Settings
	assert.False(t, kv.Get(KeySettings, &out))
}

func TestKVDelete(t *testing.T) {
	kv := NewKV(t.TempDir(), zap.NewNop())
	require.NoError(t, kv.Set(KeyUser, models.User{UserID: "u1"}))
	require.NoError(t, kv.Delete(KeyUser))

	var out models.User
	assert.False(t, kv.Get(KeyUser, &out))
}

func TestKVClearPrefixLeavesForeignKeys(t *testing.T) {
	kv := NewKV(t.TempDir(), zap.NewNop())
	require.NoError(t, kv.Set(KeyUser, models.User{UserID: "u1"}))
	require.NoError(t, kv.Set(KeySettings, models.Settings{Language: "en"}))
	require.NoError(t, kv.Set("other-app-token", "keep-me"))

	removed, err := kv.ClearPrefix(KeyPrefix)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var token string
	assert.True(t, kv.Get("other-app-token", &token))
	assert.Equal(t, "keep-me", token)

	var user models.User
	assert.False(t, kv.Get(KeyUser, &user))
}

func TestKVSizeBytesGrows(t *testing.T) {
	kv := NewKV(t.TempDir(), zap.NewNop())
	before := kv.SizeBytes()
	require.NoError(t, kv.Set(KeyWarehouses, []models.Warehouse{{WarehouseID: "WH-1", Name: "East Shed"}}))
	assert.Greater(t, kv.SizeBytes(), before)
}
