// Package storage implements the hybrid two-tier persistence layer of the
// Port Navigator portal: a small synchronous key-value tier (Tier A) for
// the current user, settings and warehouse list, and a larger structured
// tier (Tier B) for requests, complaints and map payloads, unified behind
// a single Service facade with size accounting, compression, retention
// cleanup and export/import.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"portnavigator/models"
)

// ErrMalformedImport is returned when an import document fails shape
// validation. No tier is touched in that case.
var ErrMalformedImport = errors.New("import document malformed")

// ErrIllegalTransition is returned when a status change is not allowed by
// the record's transition table.
var ErrIllegalTransition = errors.New("illegal status transition")

// Default nominal tier ceilings, used for utilization accounting only.
const (
	DefaultTierALimit = 100 << 20 // 100MB
	DefaultTierBLimit = 300 << 20 // 300MB
)

// maxAuditLogs caps the Tier A audit ring.
const maxAuditLogs = 200

// Config carries the storage service settings. Zero limits fall back to
// the nominal defaults.
type Config struct {
	DataDir       string
	TierALimit    int64
	TierBLimit    int64
	RetentionDays int
}

// Service is the storage facade. Construct one per process with New and
// pass it by reference; there is deliberately no package-level instance so
// tests can run against isolated temp directories.
type Service struct {
	cfg    Config
	logger *zap.Logger
	kv     *KV
	tierB  *TierB

	mu       sync.RWMutex
	lastSync time.Time
}

// New builds an uninitialized Service. Call Initialize before use.
func New(cfg Config, logger *zap.Logger) *Service {
	if cfg.TierALimit <= 0 {
		cfg.TierALimit = DefaultTierALimit
	}
	if cfg.TierBLimit <= 0 {
		cfg.TierBLimit = DefaultTierBLimit
	}
	return &Service{
		cfg:    cfg,
		logger: logger,
		kv:     NewKV(cfg.DataDir, logger),
		tierB:  NewTierB(cfg.DataDir, logger),
	}
}

// Initialize opens Tier B and records the hydration time. Idempotent.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.tierB.Initialize(ctx); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Close releases the Tier B handle.
func (s *Service) Close() error {
	return s.tierB.Close()
}

// TierB exposes the structured tier for collaborators that need raw
// collection access (the offline asset cache).
func (s *Service) TierB() *TierB {
	return s.tierB
}

func (s *Service) touch() {
	s.mu.Lock()
	s.lastSync = time.Now().UTC()
	s.mu.Unlock()
}

// --- Tier A: current user, settings, warehouses ---

// CurrentUser returns the persisted session user, or nil when absent or
// unreadable so callers fall back to "logged out".
func (s *Service) CurrentUser() *models.User {
	var u models.User
	if !s.kv.Get(KeyUser, &u) {
		return nil
	}
	return &u
}

// SetCurrentUser persists the session user. This write is critical: the
// error propagates.
func (s *Service) SetCurrentUser(u *models.User) error {
	if err := s.kv.Set(KeyUser, u); err != nil {
		return fmt.Errorf("failed to persist current user: %w", err)
	}
	return nil
}

// ClearCurrentUser logs the session out.
func (s *Service) ClearCurrentUser() {
	if err := s.kv.Delete(KeyUser); err != nil {
		s.logger.Warn("failed to clear current user", zap.Error(err))
	}
}

// Settings returns the persisted settings, or defaults when absent.
func (s *Service) Settings() models.Settings {
	settings := models.Settings{Language: "en", Notifications: true}
	s.kv.Get(KeySettings, &settings)
	return settings
}

// SaveSettings persists settings. Non-critical: failures are logged and
// swallowed.
func (s *Service) SaveSettings(settings models.Settings) {
	if err := s.kv.Set(KeySettings, settings); err != nil {
		s.logger.Warn("failed to persist settings", zap.Error(err))
	}
}

// Warehouses returns the denormalized warehouse list.
func (s *Service) Warehouses() []models.Warehouse {
	var list []models.Warehouse
	s.kv.Get(KeyWarehouses, &list)
	return list
}

// SaveWarehouses persists the warehouse list. Non-critical write.
func (s *Service) SaveWarehouses(list []models.Warehouse) {
	if err := s.kv.Set(KeyWarehouses, list); err != nil {
		s.logger.Warn("failed to persist warehouses", zap.Error(err))
	}
}

// AppendAuditLog records a mutating action in the Tier A audit ring.
func (s *Service) AppendAuditLog(entry models.AuditLog) {
	var logs []models.AuditLog
	s.kv.Get(KeyImportLogs, &logs)
	logs = append(logs, entry)
	if len(logs) > maxAuditLogs {
		logs = logs[len(logs)-maxAuditLogs:]
	}
	if err := s.kv.Set(KeyImportLogs, logs); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// AuditLogs returns the recorded audit entries, oldest first.
func (s *Service) AuditLogs() []models.AuditLog {
	var logs []models.AuditLog
	s.kv.Get(KeyImportLogs, &logs)
	return logs
}

// --- Tier B passthroughs that keep lastSync fresh ---

// AddRequest persists a request.
func (s *Service) AddRequest(ctx context.Context, r models.Request) error {
	if err := s.tierB.AddRequest(ctx, r); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Requests lists all requests.
func (s *Service) Requests(ctx context.Context) ([]models.Request, error) {
	return s.tierB.Requests(ctx)
}

// Request fetches one request, nil when absent.
func (s *Service) Request(ctx context.Context, id string) (*models.Request, error) {
	return s.tierB.Request(ctx, id)
}

// UpdateRequestStatus applies a status transition, rejecting moves not in
// the transition table.
func (s *Service) UpdateRequestStatus(ctx context.Context, id string, to models.RequestStatus) (*models.Request, error) {
	r, err := s.tierB.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	if !r.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: request %s -> %s", ErrIllegalTransition, r.Status, to)
	}
	r.Status = to
	if err := s.tierB.AddRequest(ctx, *r); err != nil {
		return nil, err
	}
	s.touch()
	return r, nil
}

// AddComplaint persists a complaint.
func (s *Service) AddComplaint(ctx context.Context, c models.Complaint) error {
	if err := s.tierB.AddComplaint(ctx, c); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Complaints lists all complaints.
func (s *Service) Complaints(ctx context.Context) ([]models.Complaint, error) {
	return s.tierB.Complaints(ctx)
}

// Complaint fetches one complaint, nil when absent.
func (s *Service) Complaint(ctx context.Context, id string) (*models.Complaint, error) {
	return s.tierB.Complaint(ctx, id)
}

// UpdateComplaintStatus applies a status transition, rejecting moves not
// in the transition table.
func (s *Service) UpdateComplaintStatus(ctx context.Context, id string, to models.ComplaintStatus) (*models.Complaint, error) {
	c, err := s.tierB.Complaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	if !c.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: complaint %s -> %s", ErrIllegalTransition, c.Status, to)
	}
	c.Status = to
	if err := s.tierB.AddComplaint(ctx, *c); err != nil {
		return nil, err
	}
	s.touch()
	return c, nil
}

// --- Map payloads ---

// SaveMapData compresses v and stores it under key in the map_data
// collection.
func (s *Service) SaveMapData(ctx context.Context, key string, v interface{}) error {
	compressed, err := Compress(v)
	if err != nil {
		return err
	}
	if err := s.tierB.PutBlob(ctx, CollectionMapData, key, compressed); err != nil {
		return err
	}
	s.touch()
	return nil
}

// MapData reads a compressed payload back into out. Returns false when
// the key is absent.
func (s *Service) MapData(ctx context.Context, key string, out interface{}) (bool, error) {
	compressed, found, err := s.tierB.GetBlob(ctx, CollectionMapData, key)
	if err != nil || !found {
		return false, err
	}
	if err := Decompress(compressed, out); err != nil {
		return false, err
	}
	return true, nil
}

// --- Lifecycle operations ---

// AutoCleanup deletes requests older than daysToKeep whose status is not
// pending, and complaints older than daysToKeep whose status is resolved.
// Pending requests and unresolved complaints survive at any age; that is a
// safety invariant, not an optimization. Returns the total deleted.
func (s *Service) AutoCleanup(ctx context.Context, daysToKeep int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)

	reqDeleted, err := s.tierB.DeleteRequestsBefore(ctx, cutoff, models.StatusPending)
	if err != nil {
		return 0, err
	}
	compDeleted, err := s.tierB.DeleteComplaintsBefore(ctx, cutoff, models.ComplaintResolved)
	if err != nil {
		return reqDeleted, err
	}

	total := reqDeleted + compDeleted
	if total > 0 {
		s.logger.Info("retention cleanup removed records",
			zap.Int("requests", reqDeleted),
			zap.Int("complaints", compDeleted),
			zap.Int("days_kept", daysToKeep))
		s.touch()
	}
	return total, nil
}

// ExportData assembles the versioned full-fidelity export document.
func (s *Service) ExportData(ctx context.Context) (*models.ExportDocument, error) {
	requests, err := s.tierB.Requests(ctx)
	if err != nil {
		return nil, err
	}
	complaints, err := s.tierB.Complaints(ctx)
	if err != nil {
		return nil, err
	}

	settings := s.Settings()
	return &models.ExportDocument{
		Version:   models.ExportVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: models.ExportPayload{
			CurrentUser: s.CurrentUser(),
			Requests:    requests,
			Complaints:  complaints,
			Warehouses:  s.Warehouses(),
			Settings:    &settings,
		},
	}, nil
}

// ImportData replaces the stored data with the given export document.
// The document shape is validated before any tier is touched; a malformed
// document fails atomically with ErrMalformedImport.
func (s *Service) ImportData(ctx context.Context, raw []byte) error {
	var doc models.ExportDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	if doc.Version <= 0 || doc.Version > models.ExportVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformedImport, doc.Version)
	}
	for _, r := range doc.Data.Requests {
		if r.RequestID == "" {
			return fmt.Errorf("%w: request missing id", ErrMalformedImport)
		}
	}
	for _, c := range doc.Data.Complaints {
		if c.ComplaintID == "" {
			return fmt.Errorf("%w: complaint missing id", ErrMalformedImport)
		}
	}

	// Validation passed: replace semantics from here on.
	if err := s.tierB.ClearCollections(ctx); err != nil {
		return err
	}
	for _, r := range doc.Data.Requests {
		if err := s.tierB.AddRequest(ctx, r); err != nil {
			return err
		}
	}
	for _, c := range doc.Data.Complaints {
		if err := s.tierB.AddComplaint(ctx, c); err != nil {
			return err
		}
	}
	if doc.Data.CurrentUser != nil {
		if err := s.SetCurrentUser(doc.Data.CurrentUser); err != nil {
			return err
		}
	}
	if doc.Data.Settings != nil {
		s.SaveSettings(*doc.Data.Settings)
	}
	s.SaveWarehouses(doc.Data.Warehouses)

	s.touch()
	s.logger.Info("import completed",
		zap.Int("requests", len(doc.Data.Requests)),
		zap.Int("complaints", len(doc.Data.Complaints)),
		zap.Int("warehouses", len(doc.Data.Warehouses)))
	return nil
}

// ClearAll wipes the portal's own data: the port-navigator-prefixed Tier A
// keys and every Tier B collection. Foreign Tier A keys are left alone.
func (s *Service) ClearAll(ctx context.Context) error {
	if _, err := s.kv.ClearPrefix(KeyPrefix); err != nil {
		return fmt.Errorf("failed to clear tier A namespace: %w", err)
	}
	if err := s.tierB.ClearCollections(ctx); err != nil {
		return err
	}
	s.touch()
	return nil
}
