package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"portnavigator/cache"
	"portnavigator/middleware"
	"portnavigator/rbac"
	"portnavigator/storage"
)

type MapHandler struct {
	store  *storage.Service
	assets *cache.Manager
	logger *zap.Logger
}

func NewMapHandler(store *storage.Service, assets *cache.Manager, logger *zap.Logger) *MapHandler {
	return &MapHandler{
		store:  store,
		assets: assets,
		logger: logger,
	}
}

// GetMapData returns a stored map payload, decompressed.
func (h *MapHandler) GetMapData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, "Key is required", http.StatusBadRequest)
		return
	}

	var payload interface{}
	found, err := h.store.MapData(r.Context(), key, &payload)
	if err != nil {
		h.logger.Error("failed to read map data", zap.String("key", key), zap.Error(err))
		writeError(w, "Failed to read map data", http.StatusInternalServerError)
		return
	}
	if !found {
		writeError(w, "Map data not found", http.StatusNotFound)
		return
	}

	writeJSON(w, payload)
}

// SaveMapData stores a map payload; it is compressed before hitting
// Tier B.
func (h *MapHandler) SaveMapData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}
	if rbac.PermissionsFor(user.Role, user.Classification).IsReadOnly {
		writeError(w, "Account is read-only", http.StatusForbidden)
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, "Key is required", http.StatusBadRequest)
		return
	}

	var payload interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	if err := h.store.SaveMapData(r.Context(), key, payload); err != nil {
		h.logger.Error("failed to save map data", zap.String("key", key), zap.Error(err))
		writeError(w, "Failed to save map data", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"message": "Map data saved"})
}

// FetchAsset proxies an asset fetch through the offline cache.
func (h *MapHandler) FetchAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, "URL is required", http.StatusBadRequest)
		return
	}

	body, err := h.assets.Fetch(r.Context(), url)
	if err != nil {
		h.logger.Warn("asset fetch failed", zap.String("url", url), zap.Error(err))
		writeError(w, "Asset unavailable", http.StatusBadGateway)
		return
	}

	w.Write(body)
}

// CacheInfo returns the per-category cache occupancy snapshot.
func (h *MapHandler) CacheInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.assets.InfoSnapshot())
}
