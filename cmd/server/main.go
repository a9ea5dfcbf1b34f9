package main

import (
	"log"
	"os"
	"parley/internal/db"
	"parley/internal/middleware"
	"parley/internal/models"
	"parley/internal/router"
	"parley/internal/services"
	"parley/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Database
	db.Init()

	bootstrapAdmin()

	// Moderation core
	notifier := services.NewDBNotifier(db.DB)
	events := services.NewLogPublisher()
	appealService := services.NewAppealService(db.DB, nil, notifier)
	violationService := services.NewViolationService(db.DB, nil, notifier, appealService)
	reportService := services.NewReportService(db.DB, nil, notifier, events, violationService)

	// Hourly sweeps: stale assignments back to the queue, expired timed
	// restrictions lifted.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		n, err := reportService.ReturnStaleReports()
		if err != nil {
			log.Printf("Stale report sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Returned %d stale reports to the queue", n)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule stale report sweep: %v", err)
	}
	if _, err := scheduler.AddFunc("@hourly", func() {
		n, err := violationService.LiftExpiredRestrictions()
		if err != nil {
			log.Printf("Restriction sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Lifted %d expired restrictions", n)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule restriction sweep: %v", err)
	}
	scheduler.Start()

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("parley_session", store))

	// Middleware
	r.Use(middleware.LoadUser())

	router.RegisterRoutes(r, reportService, violationService, appealService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Parley server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

// bootstrapAdmin creates the first admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD on an empty install. A no-op once any admin exists.
func bootstrapAdmin() {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}

	var count int64
	if err := db.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		log.Fatalf("Failed to check for admin account: %v", err)
	}
	if count > 0 {
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	if err := db.DB.Create(&models.User{
		Username: "admin",
		Email:    email,
		Password: hash,
		Role:     models.RoleAdmin,
	}).Error; err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}
	log.Printf("Created bootstrap admin %s", email)
}
