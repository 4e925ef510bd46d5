package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"portnavigator/auth"
	"portnavigator/models"
	"portnavigator/rbac"
	"portnavigator/storage"
)

type AuthHandler struct {
	store      *storage.Service
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

func NewAuthHandler(store *storage.Service, jwtManager *auth.JWTManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		store:      store,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

type LoginResponse struct {
	Token        string             `json:"token"`
	RefreshToken string             `json:"refresh_token"`
	User         *models.User       `json:"user"`
	Permissions  models.Permissions `json:"permissions"`
}

// Login authenticates against the locally seeded user directory.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user := h.store.UserByUsername(req.Username)
	if user == nil {
		h.logger.Info("login failed: user not found", zap.String("username", req.Username))
		writeError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	passwordHash, err := h.store.PasswordHash(user.UserID)
	if err != nil {
		h.logger.Info("login failed: no password hash", zap.String("username", req.Username))
		writeError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if err := auth.CheckPassword(req.Password, passwordHash); err != nil {
		h.logger.Info("login failed: invalid password", zap.String("username", req.Username))
		writeError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	// Update last login and pin the session user in Tier A.
	user.LastLogin = time.Now()
	if err := h.store.UpsertUser(*user); err != nil {
		h.logger.Warn("failed to update last login", zap.String("username", req.Username), zap.Error(err))
	}
	if err := h.store.SetCurrentUser(user); err != nil {
		h.logger.Warn("failed to persist session user", zap.String("username", req.Username), zap.Error(err))
	}

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("username", req.Username), zap.Error(err))
		writeError(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := h.jwtManager.GenerateRefreshToken(user)
	if err != nil {
		h.logger.Error("failed to generate refresh token", zap.String("username", req.Username), zap.Error(err))
		writeError(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	h.logger.Info("user logged in",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	writeJSON(w, LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         user,
		Permissions:  rbac.PermissionsFor(user.Role, user.Classification),
	})
}

// Logout clears the persisted session user.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.store.ClearCurrentUser()
	writeJSON(w, map[string]string{"message": "Logged out"})
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	Token string `json:"token"`
}

// RefreshToken exchanges a valid refresh token for a new access token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		writeError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	user := h.store.UserByID(claims.UserID)
	if user == nil {
		writeError(w, "User not found", http.StatusUnauthorized)
		return
	}

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("username", user.Username), zap.Error(err))
		writeError(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, RefreshTokenResponse{Token: token})
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
