package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portnavigator/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := New(Config{DataDir: t.TempDir(), RetentionDays: 90}, zap.NewNop())
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestServiceCurrentUserLifecycle(t *testing.T) {
	svc := newTestService(t)
	assert.Nil(t, svc.CurrentUser())

	user := models.User{
		UserID:         "u1",
		Username:       "horizon",
		DisplayName:    "Horizon Shipping",
		Email:          "ops@horizon.example",
		Phone:          "+256-700-000001",
		Role:           models.RoleCommunity,
		Classification: models.ClassMaritimeAgency,
		Services:       []string{"warehouse", "trolley"},
		LastLogin:      time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, svc.SetCurrentUser(&user))

	// The session must come back exactly as it was stored, every field.
	got := svc.CurrentUser()
	require.NotNil(t, got)
	assert.Equal(t, user, *got)

	svc.ClearCurrentUser()
	assert.Nil(t, svc.CurrentUser())
}

func TestServiceSettingsDefaults(t *testing.T) {
	svc := newTestService(t)
	settings := svc.Settings()
	assert.Equal(t, "en", settings.Language)
	assert.True(t, settings.Notifications)

	settings.Language = "ar"
	settings.Notifications = false
	svc.SaveSettings(settings)
	assert.Equal(t, settings, svc.Settings())
}

func TestServiceUpdateRequestStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, time.Now())))

	updated, err := svc.UpdateRequestStatus(ctx, "r1", models.StatusInProgress)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.StatusInProgress, updated.Status)

	// Approved is terminal; nothing moves out of it.
	_, err = svc.UpdateRequestStatus(ctx, "r1", models.StatusApproved)
	require.NoError(t, err)
	_, err = svc.UpdateRequestStatus(ctx, "r1", models.StatusPending)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	// Unknown id is nil, nil.
	missing, err := svc.UpdateRequestStatus(ctx, "ghost", models.StatusApproved)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestServiceUpdateComplaintStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	c := models.Complaint{
		ComplaintID: "c1",
		UserID:      "u1",
		Title:       "Broken crane",
		Priority:    models.PriorityHigh,
		Status:      models.ComplaintPending,
		Date:        time.Now(),
	}
	require.NoError(t, svc.AddComplaint(ctx, c))

	updated, err := svc.UpdateComplaintStatus(ctx, "c1", models.ComplaintResolved)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.ComplaintResolved, updated.Status)

	_, err = svc.UpdateComplaintStatus(ctx, "c1", models.ComplaintPending)
	assert.ErrorIs(t, err, ErrIllegalTransition, "resolved is terminal")
}

func TestServiceMapDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	payload := map[string]interface{}{
		"layers": []interface{}{"berths", "channels"},
		"zoom":   14.0,
	}
	require.NoError(t, svc.SaveMapData(ctx, "harbor-overview", payload))

	var restored map[string]interface{}
	found, err := svc.MapData(ctx, "harbor-overview", &restored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload, restored)

	found, err = svc.MapData(ctx, "no-such-key", &restored)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAutoCleanupNeverRemovesPendingOrUnresolved(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ancient := time.Now().AddDate(-1, 0, 0)

	require.NoError(t, svc.AddRequest(ctx, testRequest("req-pending", "u1", models.StatusPending, ancient)))
	require.NoError(t, svc.AddRequest(ctx, testRequest("req-rejected", "u1", models.StatusRejected, ancient)))
	require.NoError(t, svc.AddComplaint(ctx, models.Complaint{
		ComplaintID: "comp-open", UserID: "u1", Status: models.ComplaintInProgress, Date: ancient,
	}))
	require.NoError(t, svc.AddComplaint(ctx, models.Complaint{
		ComplaintID: "comp-done", UserID: "u1", Status: models.ComplaintResolved, Date: ancient,
	}))

	deleted, err := svc.AutoCleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	reqs, err := svc.Requests(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "req-pending", reqs[0].RequestID)

	comps, err := svc.Complaints(ctx)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, "comp-open", comps[0].ComplaintID)
}

func TestAutoCleanupSparesRecentRecords(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.AddRequest(ctx, testRequest("r1", "u1", models.StatusApproved, time.Now())))
	deleted, err := svc.AutoCleanup(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user := models.User{UserID: "u1", Username: "admin", Role: models.RoleAdmin}
	require.NoError(t, svc.SetCurrentUser(&user))
	svc.SaveWarehouses([]models.Warehouse{{WarehouseID: "WH-1", Name: "East Shed", Available: true}})
	require.NoError(t, svc.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, time.Now().UTC().Truncate(time.Second))))

	doc, err := svc.ExportData(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ExportVersion, doc.Version)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	// Import into a fresh store and re-export: the data survives by id.
	other := newTestService(t)
	require.NoError(t, other.ImportData(ctx, raw))

	reqs, err := other.Requests(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "r1", reqs[0].RequestID)
	require.NotNil(t, other.CurrentUser())
	assert.Equal(t, "u1", other.CurrentUser().UserID)
	assert.Len(t, other.Warehouses(), 1)

	// Importing the same document again replaces, never duplicates.
	require.NoError(t, other.ImportData(ctx, raw))
	reqs, err = other.Requests(ctx)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}

func TestImportMalformedIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.AddRequest(ctx, testRequest("keep-me", "u1", models.StatusPending, time.Now())))

	cases := map[string]string{
		"not json":             `{{{`,
		"zero version":         `{"version":0,"timestamp":"t","data":{}}`,
		"future version":       fmt.Sprintf(`{"version":%d,"timestamp":"t","data":{}}`, models.ExportVersion+1),
		"request missing id":   `{"version":1,"timestamp":"t","data":{"requests":[{"user_id":"u1"}]}}`,
		"complaint missing id": `{"version":1,"timestamp":"t","data":{"complaints":[{"user_id":"u1"}]}}`,
	}
	for name, raw := range cases {
		err := svc.ImportData(ctx, []byte(raw))
		assert.ErrorIs(t, err, ErrMalformedImport, name)
	}

	// Existing data is untouched after every rejected import.
	reqs, err := svc.Requests(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "keep-me", reqs[0].RequestID)
}

func TestClearAllLeavesForeignTierAKeys(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.SetCurrentUser(&models.User{UserID: "u1"}))
	require.NoError(t, svc.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, time.Now())))
	require.NoError(t, svc.kv.Set("unrelated-app-key", "survives"))

	require.NoError(t, svc.ClearAll(ctx))

	assert.Nil(t, svc.CurrentUser())
	reqs, err := svc.Requests(ctx)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	var foreign string
	assert.True(t, svc.kv.Get("unrelated-app-key", &foreign))
	assert.Equal(t, "survives", foreign)
}

func TestAuditLogRing(t *testing.T) {
	svc := newTestService(t)
	for i := 0; i < maxAuditLogs+25; i++ {
		svc.AppendAuditLog(models.AuditLog{
			LogID:  fmt.Sprintf("log-%d", i),
			Action: "TEST_ACTION",
		})
	}
	logs := svc.AuditLogs()
	require.Len(t, logs, maxAuditLogs)
	assert.Equal(t, "log-25", logs[0].LogID, "oldest entries roll off first")
	assert.Equal(t, fmt.Sprintf("log-%d", maxAuditLogs+24), logs[len(logs)-1].LogID)
}

func TestUserDirectory(t *testing.T) {
	svc := newTestService(t)

	u := models.User{UserID: "user-layla", Username: "layla", Role: models.RoleStaff}
	require.NoError(t, svc.UpsertUser(u))
	require.NoError(t, svc.StorePasswordHash("user-layla", "$2a$12$fakehash"))

	assert.NotNil(t, svc.UserByID("user-layla"))
	assert.NotNil(t, svc.UserByUsername("layla"))
	assert.Nil(t, svc.UserByUsername("nobody"))

	hash, err := svc.PasswordHash("user-layla")
	require.NoError(t, err)
	assert.Equal(t, "$2a$12$fakehash", hash)

	// Upsert replaces in place.
	u.DisplayName = "Layla H."
	require.NoError(t, svc.UpsertUser(u))
	assert.Len(t, svc.Users(), 1)
	assert.Equal(t, "Layla H.", svc.UserByID("user-layla").DisplayName)

	require.NoError(t, svc.DeleteUser("user-layla"))
	assert.Nil(t, svc.UserByID("user-layla"))
	_, err = svc.PasswordHash("user-layla")
	assert.Error(t, err)
}

func TestStatsMonotonicAndCapped(t *testing.T) {
	ctx := context.Background()
	svc := New(Config{DataDir: t.TempDir(), TierALimit: 64, TierBLimit: 64}, zap.NewNop())
	require.NoError(t, svc.Initialize(ctx))
	defer svc.Close()

	empty, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Counts["requests"])

	require.NoError(t, svc.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, time.Now())))
	one, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, one.Counts["requests"])
	assert.Greater(t, one.TierB.UsedBytes, empty.TierB.UsedBytes)

	require.NoError(t, svc.AddRequest(ctx, testRequest("r2", "u1", models.StatusPending, time.Now())))
	two, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, two.TierB.UsedBytes, one.TierB.UsedBytes)

	// Tiny nominal limits: utilization caps at 100 instead of overshooting.
	assert.LessOrEqual(t, two.TierB.UsedPercent, 100.0)
	assert.Equal(t, 100.0, two.TierB.UsedPercent)
}
