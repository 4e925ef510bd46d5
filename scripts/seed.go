package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"portnavigator/auth"
	"portnavigator/config"
	"portnavigator/models"
	"portnavigator/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()
	cfg.Validate()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	store := storage.New(storage.Config{
		DataDir:       cfg.Storage.DataDir,
		TierALimit:    cfg.Storage.TierALimitBytes,
		TierBLimit:    cfg.Storage.TierBLimitBytes,
		RetentionDays: cfg.Storage.RetentionDays,
	}, logger)
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	log.Println("🌱 Starting database seeding...")

	if err := seedUsers(store); err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}

	if err := seedWarehouses(store); err != nil {
		log.Fatalf("Failed to seed warehouses: %v", err)
	}

	if err := seedRecords(ctx, store); err != nil {
		log.Fatalf("Failed to seed records: %v", err)
	}

	log.Println("✅ Database seeding completed successfully!")
}

// seedUsers installs the portal's mock user list. There is no real
// identity provider; logins authenticate against these entries.
func seedUsers(store *storage.Service) error {
	users := []struct {
		User     models.User
		Password string
	}{
		{
			User: models.User{
				UserID:      "user-admin",
				Username:    "admin",
				DisplayName: "Port Administrator",
				Role:        models.RoleAdmin,
				LastLogin:   time.Now(),
			},
			Password: "harbor2024",
		},
		{
			User: models.User{
				UserID:      "user-staff-layla",
				Username:    "staff_layla",
				DisplayName: "Layla Hassan",
				Role:        models.RoleStaff,
				LastLogin:   time.Now(),
			},
			Password: "harbor2024",
		},
		{
			User: models.User{
				UserID:      "user-chairman",
				Username:    "chairman",
				DisplayName: "Port Authority Chairman",
				Role:        models.RoleChairman,
				ReadOnly:    true,
				LastLogin:   time.Now(),
			},
			Password: "harbor2024",
		},
		{
			User: models.User{
				UserID:         "user-agency-horizon",
				Username:       "agency_horizon",
				DisplayName:    "Horizon Maritime Agency",
				Role:           models.RoleCommunity,
				Classification: models.ClassMaritimeAgency,
				Services:       []string{"berthing"},
				LastLogin:      time.Now(),
			},
			Password: "harbor2024",
		},
		{
			User: models.User{
				UserID:         "user-shipping-pelagos",
				Username:       "shipping_pelagos",
				DisplayName:    "Pelagos Shipping Co.",
				Role:           models.RoleCommunity,
				Classification: models.ClassShippingCompany,
				Services:       []string{"warehouse"},
				LastLogin:      time.Now(),
			},
			Password: "harbor2024",
		},
	}

	for _, userData := range users {
		if err := store.UpsertUser(userData.User); err != nil {
			return fmt.Errorf("failed to create user %s: %w", userData.User.Username, err)
		}

		passwordHash, err := auth.HashPassword(userData.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", userData.User.Username, err)
		}
		if err := store.StorePasswordHash(userData.User.UserID, passwordHash); err != nil {
			return fmt.Errorf("failed to store password for %s: %w", userData.User.Username, err)
		}

		log.Printf("  ✓ Created user: %s (role: %s)", userData.User.Username, userData.User.Role)
	}

	return nil
}

func seedWarehouses(store *storage.Service) error {
	warehouses := []models.Warehouse{
		{WarehouseID: "WH-EAST-01", Name: "East Quay Warehouse 1", AreaSqm: 1200, Available: true},
		{WarehouseID: "WH-EAST-02", Name: "East Quay Warehouse 2", AreaSqm: 800, Available: true},
		{WarehouseID: "WH-WEST-01", Name: "West Basin Cold Store", AreaSqm: 450, Available: false},
		{WarehouseID: "WH-SOUTH-01", Name: "South Pier Bulk Shed", AreaSqm: 2000, Available: true},
	}

	store.SaveWarehouses(warehouses)
	log.Printf("  ✓ Seeded %d warehouses", len(warehouses))
	return nil
}

func seedRecords(ctx context.Context, store *storage.Service) error {
	requests := []models.Request{
		{
			RequestID: uuid.NewString(),
			UserID:    "user-shipping-pelagos",
			Type:      models.RequestWarehouse,
			Title:     "Seasonal storage for dry cargo",
			Status:    models.StatusPending,
			Date:      time.Now().AddDate(0, 0, -3),
			Details:   "Requesting WH-EAST-01 for Q4 overflow",
		},
		{
			RequestID:     uuid.NewString(),
			UserID:        "user-agency-horizon",
			Type:          models.RequestTrolley,
			Title:         "Berthing for MV Meltemi",
			Status:        models.StatusInProgress,
			Date:          time.Now().AddDate(0, 0, -5),
			VesselName:    "MV Meltemi",
			ShippingAgent: "Horizon Maritime Agency",
			CargoType:     "Containers",
			Quantity:      "140 TEU",
			DateFrom:      time.Now().AddDate(0, 0, 2).Format("2006-01-02"),
			DateTo:        time.Now().AddDate(0, 0, 4).Format("2006-01-02"),
		},
	}

	for _, r := range requests {
		if err := store.AddRequest(ctx, r); err != nil {
			return fmt.Errorf("failed to create request %s: %w", r.RequestID, err)
		}
		log.Printf("  ✓ Created request: %s", r.Title)
	}

	complaints := []models.Complaint{
		{
			ComplaintID: uuid.NewString(),
			UserID:      "user-agency-horizon",
			CreatedBy:   "user-agency-horizon",
			Title:       "Broken bollard on east quay",
			FaultType:   "mooring",
			Priority:    models.PriorityHigh,
			Status:      models.ComplaintPending,
			Location:    "East Quay, berth 3",
			Date:        time.Now().AddDate(0, 0, -1),
			Description: "Bollard sheared at the base, unusable for mooring",
		},
		{
			ComplaintID: uuid.NewString(),
			UserID:      "user-shipping-pelagos",
			CreatedBy:   "user-shipping-pelagos",
			Title:       "Potholes on access road",
			FaultType:   "paving",
			Priority:    models.PriorityMedium,
			Status:      models.ComplaintInProgress,
			Location:    "South Pier access road",
			Date:        time.Now().AddDate(0, 0, -7),
		},
	}

	for _, c := range complaints {
		if err := store.AddComplaint(ctx, c); err != nil {
			return fmt.Errorf("failed to create complaint %s: %w", c.ComplaintID, err)
		}
		log.Printf("  ✓ Created complaint: %s", c.Title)
	}

	return nil
}
