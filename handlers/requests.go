package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portnavigator/middleware"
	"portnavigator/models"
	"portnavigator/rbac"
	"portnavigator/storage"
)

type RequestHandler struct {
	store  *storage.Service
	logger *zap.Logger
}

func NewRequestHandler(store *storage.Service, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		store:  store,
		logger: logger,
	}
}

// List returns the requests visible to the caller.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	all, err := h.store.Requests(r.Context())
	if err != nil {
		h.logger.Error("failed to list requests", zap.Error(err))
		writeError(w, "Failed to retrieve requests", http.StatusInternalServerError)
		return
	}

	visible := rbac.VisibleRequests(all, user.Role, user.UserID, user.Classification)

	writeJSON(w, map[string]interface{}{
		"requests": visible,
		"count":    len(visible),
	})
}

type CreateRequestBody struct {
	Type          models.RequestType `json:"type"`
	Title         string             `json:"title"`
	Details       string             `json:"details,omitempty"`
	VesselName    string             `json:"vessel_name,omitempty"`
	ShippingAgent string             `json:"shipping_agent,omitempty"`
	CargoType     string             `json:"cargo_type,omitempty"`
	Quantity      string             `json:"quantity,omitempty"`
	DateFrom      string             `json:"date_from,omitempty"`
	DateTo        string             `json:"date_to,omitempty"`
	Owner         string             `json:"owner,omitempty"`
}

// Create files a new service request for the calling community user. The
// request type is fixed here and never changes afterwards.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
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
	if !perms.CanCreateRequests {
		writeError(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if body.Type != models.RequestWarehouse && body.Type != models.RequestTrolley {
		writeError(w, "Request type must be warehouse or trolley", http.StatusBadRequest)
		return
	}
	if body.Title == "" {
		writeError(w, "Title is required", http.StatusBadRequest)
		return
	}

	request := models.Request{
		RequestID:     uuid.NewString(),
		UserID:        user.UserID,
		Type:          body.Type,
		Title:         body.Title,
		Status:        models.StatusPending,
		Date:          time.Now().UTC(),
		Details:       body.Details,
		VesselName:    body.VesselName,
		ShippingAgent: body.ShippingAgent,
		CargoType:     body.CargoType,
		Quantity:      body.Quantity,
		DateFrom:      body.DateFrom,
		DateTo:        body.DateTo,
		Owner:         body.Owner,
	}

	if err := h.store.AddRequest(r.Context(), request); err != nil {
		h.logger.Error("failed to create request", zap.String("request_id", request.RequestID), zap.Error(err))
		writeError(w, "Failed to create request", http.StatusInternalServerError)
		return
	}

	h.logger.Info("request created",
		zap.String("request_id", request.RequestID),
		zap.String("type", string(request.Type)),
		zap.String("username", user.Username))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(request)
}

type UpdateRequestStatusBody struct {
	RequestID string               `json:"request_id"`
	Status    models.RequestStatus `json:"status"`
}

// UpdateStatus moves a request through its lifecycle. Only roles with
// status-edit rights may call it, approval additionally requires the
// approve capability, and illegal transitions are rejected.
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var body UpdateRequestStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.RequestID == "" || body.Status == "" {
		writeError(w, "Request ID and status are required", http.StatusBadRequest)
		return
	}
	if body.Status == models.StatusApproved && !perms.CanApproveRequests {
		writeError(w, "Insufficient permissions to approve", http.StatusForbidden)
		return
	}

	updated, err := h.store.UpdateRequestStatus(r.Context(), body.RequestID, body.Status)
	if errors.Is(err, storage.ErrIllegalTransition) {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.logger.Error("failed to update request status", zap.Error(err))
		writeError(w, "Failed to update request", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		writeError(w, "Request not found", http.StatusNotFound)
		return
	}

	h.store.AppendAuditLog(models.AuditLog{
		LogID:     fmt.Sprintf("log-%d", time.Now().UnixNano()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    user.UserID,
		Action:    "REQUEST_STATUS_UPDATE",
		Details:   fmt.Sprintf("Request %s moved to %s", body.RequestID, body.Status),
	})

	h.logger.Info("request status updated",
		zap.String("request_id", body.RequestID),
		zap.String("status", string(body.Status)),
		zap.String("username", user.Username))

	writeJSON(w, updated)
}

// Export streams the caller's visible requests as CSV.
func (h *RequestHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	all, err := h.store.Requests(r.Context())
	if err != nil {
		h.logger.Error("failed to list requests", zap.Error(err))
		writeError(w, "Failed to retrieve requests", http.StatusInternalServerError)
		return
	}
	visible := rbac.VisibleRequests(all, user.Role, user.UserID, user.Classification)

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("port_navigator_requests_%s.csv", timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Request ID", "User ID", "Type", "Title", "Status", "Date", "Vessel", "Shipping Agent", "Cargo", "Quantity"}
	if err := writer.Write(header); err != nil {
		h.logger.Error("failed to write CSV header", zap.Error(err))
		return
	}

	for _, req := range visible {
		row := []string{
			req.RequestID,
			req.UserID,
			string(req.Type),
			req.Title,
			string(req.Status),
			req.Date.Format(time.RFC3339),
			req.VesselName,
			req.ShippingAgent,
			req.CargoType,
			req.Quantity,
		}
		if err := writer.Write(row); err != nil {
			h.logger.Error("failed to write CSV row", zap.Error(err))
			return
		}
	}

	h.logger.Info("requests exported",
		zap.String("username", user.Username),
		zap.Int("count", len(visible)))
}
