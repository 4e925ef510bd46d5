// main.go
// Port Navigator API - local-first backend for the port-authority portal.
// Implements JWT authentication, the hybrid two-tier storage service and
// the role-based access layer behind the portal UI.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"portnavigator/auth"
	"portnavigator/cache"
	"portnavigator/config"
	"portnavigator/handlers"
	"portnavigator/middleware"
	"portnavigator/models"
	"portnavigator/storage"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()
	cfg.Validate()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	log.Printf("🚀 Starting Port Navigator API Server")
	log.Printf("📍 Environment: %s", cfg.Server.Environment)
	log.Printf("🔧 Port: %s", cfg.Server.Port)

	// Root context cancelled on shutdown; stops all polling tasks.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the hybrid storage service
	store := storage.New(storage.Config{
		DataDir:       cfg.Storage.DataDir,
		TierALimit:    cfg.Storage.TierALimitBytes,
		TierBLimit:    cfg.Storage.TierBLimitBytes,
		RetentionDays: cfg.Storage.RetentionDays,
	}, logger)
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("💾 Storage initialized (data dir: %s)", cfg.Storage.DataDir)

	// Offline asset cache over Tier B
	assets := cache.NewManager(store.TierB(), nil, logger)
	if err := assets.Initialize(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize asset cache: %v", err)
	}

	// Background stats/cache-info refreshers
	monitor := storage.NewMonitor(store, logger,
		cfg.Storage.StatsInterval, cfg.Storage.CacheInfoInterval, assets.RefreshInfo)
	monitor.Start(ctx)

	// Initialize JWT Manager
	jwtManager := auth.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.Expiration,
		cfg.JWT.RefreshTokenExpiration,
	)
	log.Printf("🔐 JWT Manager initialized (expiration: %v)", cfg.JWT.Expiration)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(store, jwtManager, logger)
	requestHandler := handlers.NewRequestHandler(store, logger)
	complaintHandler := handlers.NewComplaintHandler(store, logger)
	adminHandler := handlers.NewAdminHandler(store, monitor, assets, logger, cfg.Storage.RetentionDays)
	mapHandler := handlers.NewMapHandler(store, assets, logger)
	log.Printf("✅ Handlers initialized")

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.CleanupOldLimiters(ctx)
	log.Printf("🛡️  Rate limiter initialized (%d requests per %v)", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Set up router
	mux := http.NewServeMux()

	// Public routes (no authentication required)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/login", authHandler.Login)
	mux.HandleFunc("/api/refresh", authHandler.RefreshToken)

	// Protected routes (authentication required)
	authMiddleware := middleware.AuthMiddleware(jwtManager, store)

	mux.Handle("/api/logout", authMiddleware(http.HandlerFunc(authHandler.Logout)))

	// Request endpoints
	mux.Handle("/api/requests", authMiddleware(http.HandlerFunc(requestHandler.List)))
	mux.Handle("/api/requests/create", authMiddleware(http.HandlerFunc(requestHandler.Create)))
	mux.Handle("/api/requests/status", authMiddleware(http.HandlerFunc(requestHandler.UpdateStatus)))
	mux.Handle("/api/requests/export", authMiddleware(http.HandlerFunc(requestHandler.Export)))

	// Complaint endpoints
	mux.Handle("/api/complaints", authMiddleware(http.HandlerFunc(complaintHandler.List)))
	mux.Handle("/api/complaints/create", authMiddleware(http.HandlerFunc(complaintHandler.Create)))
	mux.Handle("/api/complaints/status", authMiddleware(http.HandlerFunc(complaintHandler.UpdateStatus)))

	// Map data and offline asset cache
	mux.Handle("/api/map/data", authMiddleware(http.HandlerFunc(mapHandler.GetMapData)))
	mux.Handle("/api/map/data/save", authMiddleware(http.HandlerFunc(mapHandler.SaveMapData)))
	mux.Handle("/api/assets", authMiddleware(http.HandlerFunc(mapHandler.FetchAsset)))
	mux.Handle("/api/assets/info", authMiddleware(http.HandlerFunc(mapHandler.CacheInfo)))

	// Admin console: chairman gets read-only visibility, admin mutates
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	adminOrChairman := middleware.RequireRole(models.RoleAdmin, models.RoleChairman)
	mux.Handle("/api/admin/users", authMiddleware(adminOrChairman(http.HandlerFunc(adminHandler.GetUsers))))
	mux.Handle("/api/admin/users/create", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.CreateUser))))
	mux.Handle("/api/admin/users/delete", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.DeleteUser))))
	mux.Handle("/api/admin/stats", authMiddleware(adminOrChairman(http.HandlerFunc(adminHandler.GetStats))))
	mux.Handle("/api/admin/audit", authMiddleware(adminOrChairman(http.HandlerFunc(adminHandler.GetAuditLogs))))
	mux.Handle("/api/admin/cleanup", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.Cleanup))))
	mux.Handle("/api/admin/export", authMiddleware(adminOrChairman(http.HandlerFunc(adminHandler.Export))))
	mux.Handle("/api/admin/import", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.Import))))
	mux.Handle("/api/admin/clear", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.ClearAll))))

	// Apply global middleware
	handler := middleware.CORSMiddleware(cfg.CORS.AllowedOrigins)(mux)
	handler = rateLimiter.Middleware()(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cancel()
	monitor.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

// Health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%d,"version":"1.0.0"}`, time.Now().Unix())
}
