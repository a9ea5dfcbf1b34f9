package router

import (
	"parley/internal/handlers"
	"parley/internal/middleware"
	"parley/internal/services"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, reports *services.ReportService, violations *services.ViolationService, appeals *services.AppealService) {
	// Handlers
	authHandler := handlers.NewAuthHandler()
	reportHandler := handlers.NewReportHandler(reports)
	moderationHandler := handlers.NewModerationHandler(violations)
	appealHandler := handlers.NewAppealHandler(appeals)
	notificationHandler := handlers.NewNotificationHandler()

	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	// Protected Routes
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/reports", reportHandler.Create)

		authorized.GET("/appeals/eligibility", appealHandler.Eligibility)
		authorized.POST("/appeals", appealHandler.Submit)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
	}

	// Moderator Routes
	mod := r.Group("/mod")
	mod.Use(middleware.AuthRequired(), middleware.ModeratorRequired())
	{
		mod.GET("/reports", reportHandler.Queue)
		mod.POST("/reports/:id/assign", reportHandler.Assign)
		mod.POST("/reports/:id/resolve", reportHandler.Resolve)
		mod.POST("/reports/:id/dismiss", reportHandler.Dismiss)
		mod.POST("/reports/:id/escalate", reportHandler.Escalate)
	}

	// Admin Routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.GET("/cosigns", moderationHandler.PendingCosigns)
		admin.POST("/cosigns/:id", moderationHandler.Cosign)
		admin.GET("/reviews", moderationHandler.OpenReviews)
		admin.GET("/users/:id/events", moderationHandler.AuditTrail)

		admin.GET("/appeals", appealHandler.Pending)
		admin.POST("/appeals/:id/decide", appealHandler.Decide)
	}
}
