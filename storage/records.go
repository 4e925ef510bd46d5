package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"portnavigator/models"
)

// Typed request/complaint operations over the Tier B document tables.
//
// Failure semantics follow the portal contract: single-record operations
// reject with descriptive errors, while the bulk reads (Requests,
// Complaints) degrade to an empty slice on internal failure so consumers
// can render an empty state instead of crashing. ErrNotInitialized is
// still surfaced, since that is a programming error rather than a storage
// fault.

// AddRequest inserts or replaces a request.
func (t *TierB) AddRequest(ctx context.Context, r models.Request) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize request %s: %w", r.RequestID, err)
	}
	return t.putDoc(ctx, "requests", docRow{
		ID:     r.RequestID,
		UserID: r.UserID,
		Status: string(r.Status),
		Date:   r.Date,
		Doc:    string(doc),
	})
}

// Request returns a request by id, or nil if absent.
func (t *TierB) Request(ctx context.Context, id string) (*models.Request, error) {
	doc, err := t.getDoc(ctx, "requests", id)
	if err != nil || doc == "" {
		return nil, err
	}
	var r models.Request
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("failed to parse request %s: %w", id, err)
	}
	return &r, nil
}

// Requests returns every request, oldest first. Internal failures degrade
// to an empty slice.
func (t *TierB) Requests(ctx context.Context) ([]models.Request, error) {
	docs, err := t.listDocs(ctx, "requests", "")
	if err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return nil, err
		}
		t.logger.Error("request listing failed, returning empty set", zap.Error(err))
		return []models.Request{}, nil
	}
	return unmarshalDocs[models.Request](t, "requests", docs), nil
}

// RequestsByUser returns the requests owned by a user.
func (t *TierB) RequestsByUser(ctx context.Context, userID string) ([]models.Request, error) {
	docs, err := t.listDocs(ctx, "requests", "user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	return unmarshalDocs[models.Request](t, "requests", docs), nil
}

// RequestsByStatus returns the requests in a given lifecycle state.
func (t *TierB) RequestsByStatus(ctx context.Context, status models.RequestStatus) ([]models.Request, error) {
	docs, err := t.listDocs(ctx, "requests", "status = ?", string(status))
	if err != nil {
		return nil, err
	}
	return unmarshalDocs[models.Request](t, "requests", docs), nil
}

// DeleteRequest removes a request by id.
func (t *TierB) DeleteRequest(ctx context.Context, id string) error {
	return t.deleteDoc(ctx, "requests", id)
}

// AddComplaint inserts or replaces a complaint.
func (t *TierB) AddComplaint(ctx context.Context, c models.Complaint) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize complaint %s: %w", c.ComplaintID, err)
	}
	return t.putDoc(ctx, "complaints", docRow{
		ID:     c.ComplaintID,
		UserID: c.UserID,
		Status: string(c.Status),
		Date:   c.Date,
		Doc:    string(doc),
	})
}

// Complaint returns a complaint by id, or nil if absent.
func (t *TierB) Complaint(ctx context.Context, id string) (*models.Complaint, error) {
	doc, err := t.getDoc(ctx, "complaints", id)
	if err != nil || doc == "" {
		return nil, err
	}
	var c models.Complaint
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, fmt.Errorf("failed to parse complaint %s: %w", id, err)
	}
	return &c, nil
}

// Complaints returns every complaint, oldest first. Internal failures
// degrade to an empty slice.
func (t *TierB) Complaints(ctx context.Context) ([]models.Complaint, error) {
	docs, err := t.listDocs(ctx, "complaints", "")
	if err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return nil, err
		}
		t.logger.Error("complaint listing failed, returning empty set", zap.Error(err))
		return []models.Complaint{}, nil
	}
	return unmarshalDocs[models.Complaint](t, "complaints", docs), nil
}

// ComplaintsByUser returns the complaints owned by a user.
func (t *TierB) ComplaintsByUser(ctx context.Context, userID string) ([]models.Complaint, error) {
	docs, err := t.listDocs(ctx, "complaints", "user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	return unmarshalDocs[models.Complaint](t, "complaints", docs), nil
}

// DeleteComplaint removes a complaint by id.
func (t *TierB) DeleteComplaint(ctx context.Context, id string) error {
	return t.deleteDoc(ctx, "complaints", id)
}

// DeleteRequestsBefore removes requests dated before cutoff whose status
// differs from keepStatus. Returns the number deleted.
func (t *TierB) DeleteRequestsBefore(ctx context.Context, cutoff time.Time, keepStatus models.RequestStatus) (int, error) {
	db, err := t.handle()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		"DELETE FROM requests WHERE date < ? AND status != ?",
		cutoff.UTC(), string(keepStatus))
	if err != nil {
		return 0, fmt.Errorf("failed to prune requests: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteComplaintsBefore removes complaints dated before cutoff whose
// status equals onlyStatus. Returns the number deleted.
func (t *TierB) DeleteComplaintsBefore(ctx context.Context, cutoff time.Time, onlyStatus models.ComplaintStatus) (int, error) {
	db, err := t.handle()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		"DELETE FROM complaints WHERE date < ? AND status = ?",
		cutoff.UTC(), string(onlyStatus))
	if err != nil {
		return 0, fmt.Errorf("failed to prune complaints: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
