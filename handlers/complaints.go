package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portnavigator/middleware"
	"portnavigator/models"
	"portnavigator/rbac"
	"portnavigator/storage"
)

type ComplaintHandler struct {
	store  *storage.Service
	logger *zap.Logger
}

func NewComplaintHandler(store *storage.Service, logger *zap.Logger) *ComplaintHandler {
	return &ComplaintHandler{
		store:  store,
		logger: logger,
	}
}

// priorityRank orders complaints for the dashboards: high first, then by
// date within the same priority.
var priorityRank = map[models.Priority]int{
	models.PriorityHigh:   0,
	models.PriorityMedium: 1,
	models.PriorityLow:    2,
}

// List returns the complaints visible to the caller, priority-sorted.
func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	all, err := h.store.Complaints(r.Context())
	if err != nil {
		h.logger.Error("failed to list complaints", zap.Error(err))
		writeError(w, "Failed to retrieve complaints", http.StatusInternalServerError)
		return
	}

	visible := rbac.VisibleComplaints(all, user.Role, user.UserID, user.Classification)
	sort.SliceStable(visible, func(i, j int) bool {
		ri, rj := priorityRank[visible[i].Priority], priorityRank[visible[j].Priority]
		if ri != rj {
			return ri < rj
		}
		return visible[i].Date.Before(visible[j].Date)
	})

	writeJSON(w, map[string]interface{}{
		"complaints": visible,
		"count":      len(visible),
	})
}

type CreateComplaintBody struct {
	Title       string          `json:"title"`
	FaultType   string          `json:"fault_type"`
	Priority    models.Priority `json:"priority"`
	Location    string          `json:"location,omitempty"`
	FacilityID  string          `json:"facility_id,omitempty"`
	MapPath     string          `json:"map_path,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Create files a maintenance complaint for the calling user.
func (h *ComplaintHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	perms := rbac.PermissionsFor(user.Role, user.Classification)
	if !perms.CanCreateComplaints {
		writeError(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	var body CreateComplaintBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Title == "" || body.FaultType == "" {
		writeError(w, "Title and fault type are required", http.StatusBadRequest)
		return
	}
	if body.Priority == "" {
		body.Priority = models.PriorityMedium
	}

	complaint := models.Complaint{
		ComplaintID: uuid.NewString(),
		UserID:      user.UserID,
		CreatedBy:   user.UserID,
		Title:       body.Title,
		FaultType:   body.FaultType,
		Priority:    body.Priority,
		Status:      models.ComplaintPending,
		Location:    body.Location,
		FacilityID:  body.FacilityID,
		MapPath:     body.MapPath,
		Date:        time.Now().UTC(),
		Description: body.Description,
	}

	if err := h.store.AddComplaint(r.Context(), complaint); err != nil {
		h.logger.Error("failed to create complaint", zap.String("complaint_id", complaint.ComplaintID), zap.Error(err))
		writeError(w, "Failed to create complaint", http.StatusInternalServerError)
		return
	}

	h.logger.Info("complaint created",
		zap.String("complaint_id", complaint.ComplaintID),
		zap.String("priority", string(complaint.Priority)),
		zap.String("username", user.Username))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(complaint)
}

type UpdateComplaintStatusBody struct {
	ComplaintID string                 `json:"complaint_id"`
	Status      models.ComplaintStatus `json:"status"`
}

// UpdateStatus moves a complaint through its lifecycle; staff/admin only,
// with illegal transitions rejected.
func (h *ComplaintHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	perms := rbac.PermissionsFor(user.Role, user.Classification)
	if !perms.CanEditStatus {
		writeError(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	var body UpdateComplaintStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.ComplaintID == "" || body.Status == "" {
		writeError(w, "Complaint ID and status are required", http.StatusBadRequest)
		return
	}

	updated, err := h.store.UpdateComplaintStatus(r.Context(), body.ComplaintID, body.Status)
	if errors.Is(err, storage.ErrIllegalTransition) {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.logger.Error("failed to update complaint status", zap.Error(err))
		writeError(w, "Failed to update complaint", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		writeError(w, "Complaint not found", http.StatusNotFound)
		return
	}

	h.store.AppendAuditLog(models.AuditLog{
		LogID:     fmt.Sprintf("log-%d", time.Now().UnixNano()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    user.UserID,
		Action:    "COMPLAINT_STATUS_UPDATE",
		Details:   fmt.Sprintf("Complaint %s moved to %s", body.ComplaintID, body.Status),
	})

	h.logger.Info("complaint status updated",
		zap.String("complaint_id", body.ComplaintID),
		zap.String("status", string(body.Status)),
		zap.String("username", user.Username))

	writeJSON(w, updated)
}
