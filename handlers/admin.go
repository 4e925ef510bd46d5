package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"portnavigator/auth"
	"portnavigator/cache"
	"portnavigator/middleware"
	"portnavigator/models"
	"portnavigator/rbac"
	"portnavigator/storage"
)

type AdminHandler struct {
	store         *storage.Service
	monitor       *storage.Monitor
	assets        *cache.Manager
	logger        *zap.Logger
	retentionDays int
}

func NewAdminHandler(store *storage.Service, monitor *storage.Monitor, assets *cache.Manager, logger *zap.Logger, retentionDays int) *AdminHandler {
	return &AdminHandler{
		store:         store,
		monitor:       monitor,
		assets:        assets,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// rebuildAssetCache resyncs the asset cache accounting after an operation
// that wiped or replaced the map_cache collection underneath it.
func (h *AdminHandler) rebuildAssetCache(r *http.Request) {
	if err := h.assets.Initialize(r.Context()); err != nil {
		h.logger.Warn("failed to rebuild asset cache accounting", zap.Error(err))
	}
}

func (h *AdminHandler) audit(userID, action, details string) {
	h.store.AppendAuditLog(models.AuditLog{
		LogID:     fmt.Sprintf("log-%d", time.Now().UnixNano()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    userID,
		Action:    action,
		Details:   details,
	})
}

// requireMutation rejects read-only callers (the chairman reaches the
// admin console but may not change anything).
func requireMutation(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return nil, false
	}
	if rbac.PermissionsFor(user.Role, user.Classification).IsReadOnly {
		writeError(w, "Account is read-only", http.StatusForbidden)
		return nil, false
	}
	return user, true
}

// --- User Management ---

type CreateUserRequest struct {
	Username       string                `json:"username"`
	Password       string                `json:"password"`
	DisplayName    string                `json:"display_name"`
	Role           models.UserRole       `json:"role"`
	Classification models.Classification `json:"classification,omitempty"`
}

type DeleteUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUsers returns the user directory.
func (h *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.store.Users())
}

// CreateUser registers a portal user.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := requireMutation(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch req.Role {
	case models.RoleAdmin, models.RoleStaff, models.RoleCommunity, models.RoleChairman:
	default:
		writeError(w, "Unknown role", http.StatusBadRequest)
		return
	}
	if h.store.UserByUsername(req.Username) != nil {
		writeError(w, "Username already exists", http.StatusConflict)
		return
	}

	user := models.User{
		UserID:         fmt.Sprintf("user-%s", req.Username),
		Username:       req.Username,
		DisplayName:    req.DisplayName,
		Role:           req.Role,
		Classification: req.Classification,
		ReadOnly:       req.Role == models.RoleChairman,
		LastLogin:      time.Now(),
	}
	if user.Role == models.RoleCommunity && user.Classification == "" {
		user.Classification = models.ClassOther
	}

	if err := h.store.UpsertUser(user); err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		writeError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		writeError(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	if err := h.store.StorePasswordHash(user.UserID, passwordHash); err != nil {
		h.logger.Error("failed to store password", zap.Error(err))
		writeError(w, "Failed to store password", http.StatusInternalServerError)
		return
	}

	h.audit(adminUser.UserID, "ADMIN_CREATE_USER",
		fmt.Sprintf("Created user %s with role %s", user.Username, user.Role))
	h.logger.Info("user created",
		zap.String("by", adminUser.Username),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// DeleteUser removes a user from the directory. Owned records stay; there
// is intentionally no cascade.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := requireMutation(w, r)
	if !ok {
		return
	}

	var req DeleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "User ID is required", http.StatusBadRequest)
		return
	}
	if req.UserID == adminUser.UserID {
		writeError(w, "Cannot delete your own account", http.StatusBadRequest)
		return
	}
	target := h.store.UserByID(req.UserID)
	if target == nil {
		writeError(w, "User not found", http.StatusNotFound)
		return
	}

	if err := h.store.DeleteUser(req.UserID); err != nil {
		h.logger.Error("failed to delete user", zap.Error(err))
		writeError(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}

	h.audit(adminUser.UserID, "ADMIN_DELETE_USER",
		fmt.Sprintf("Deleted user %s", target.Username))
	h.logger.Info("user deleted",
		zap.String("by", adminUser.Username),
		zap.String("username", target.Username))

	writeJSON(w, map[string]string{"message": "User deleted successfully"})
}

// --- Storage administration ---

// GetStats returns the latest storage statistics snapshot.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.monitor.Snapshot())
}

// GetAuditLogs returns the recorded audit entries.
func (h *AdminHandler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.store.AuditLogs())
}

// Cleanup runs the retention cleanup and reports the number of deleted
// records.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := requireMutation(w, r)
	if !ok {
		return
	}

	days := h.retentionDays
	if q := r.URL.Query().Get("days"); q != "" {
		if _, err := fmt.Sscanf(q, "%d", &days); err != nil || days <= 0 {
			writeError(w, "Invalid 'days' parameter", http.StatusBadRequest)
			return
		}
	}

	deleted, err := h.store.AutoCleanup(r.Context(), days)
	if err != nil {
		h.logger.Error("cleanup failed", zap.Error(err))
		writeError(w, "Cleanup failed", http.StatusInternalServerError)
		return
	}

	h.audit(adminUser.UserID, "RETENTION_CLEANUP",
		fmt.Sprintf("Removed %d records older than %d days", deleted, days))

	writeJSON(w, map[string]interface{}{
		"deleted": deleted,
		"days":    days,
	})
}

// Export streams the versioned full-fidelity export document.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	doc, err := h.store.ExportData(r.Context())
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		writeError(w, "Export failed", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("port_navigator_export_%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	json.NewEncoder(w).Encode(doc)

	h.audit(user.UserID, "DATA_EXPORT", fmt.Sprintf("User %s exported portal data", user.Username))
}

// Import replaces the stored data with an uploaded export document.
func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := requireMutation(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if err := h.store.ImportData(r.Context(), raw); err != nil {
		h.logger.Warn("import rejected", zap.Error(err))
		writeError(w, fmt.Sprintf("Import failed: %v", err), http.StatusBadRequest)
		return
	}

	h.rebuildAssetCache(r)
	h.audit(adminUser.UserID, "DATA_IMPORT", "Imported portal data (replace)")
	writeJSON(w, map[string]string{"message": "Import completed"})
}

// ClearAll wipes the portal's namespaced data from both tiers.
func (h *AdminHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := requireMutation(w, r)
	if !ok {
		return
	}

	if err := h.store.ClearAll(r.Context()); err != nil {
		h.logger.Error("clear-all failed", zap.Error(err))
		writeError(w, "Failed to clear storage", http.StatusInternalServerError)
		return
	}

	h.rebuildAssetCache(r)
	h.logger.Info("storage cleared", zap.String("by", adminUser.Username))
	writeJSON(w, map[string]string{"message": "Storage cleared"})
}
