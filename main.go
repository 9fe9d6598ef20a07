package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/yeremiapane/restaurant-ops/config"
	"github.com/yeremiapane/restaurant-ops/events"
	"github.com/yeremiapane/restaurant-ops/models"
	"github.com/yeremiapane/restaurant-ops/router"
	"github.com/yeremiapane/restaurant-ops/services"
	"github.com/yeremiapane/restaurant-ops/utils"
)

func main() {
	// Running without a .env file is fine in containers.
	_ = godotenv.Load()

	utils.InitLogger()

	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Restaurant{},
		&models.User{},
		&models.Table{},
		&models.TableSession{},
		&models.MenuCategory{},
		&models.Menu{},
		&models.Order{},
		&models.OrderItem{},
		&models.AssistanceRequest{},
		&models.CleaningLog{},
		&models.ActivityLog{},
	); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate database: %v", err)
	}

	policy := config.LoadPolicy()

	hub := events.NewHub(policy.StreamHeartbeat)
	defer hub.Close()

	monitor := services.NewSessionMonitor(db, hub, policy)
	monitor.Start()
	defer monitor.Stop()

	r := router.SetupRouter(db, hub, policy)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	utils.InfoLogger.Printf("Server running on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatalf("Failed to run server: %v", err)
	}
}
