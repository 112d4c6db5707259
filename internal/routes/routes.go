package routes

import (
	"github.com/fieldops/backend/internal/controllers"
	"github.com/fieldops/backend/internal/middleware"
	"github.com/fieldops/backend/internal/realtime"
	"github.com/fieldops/backend/internal/services"
	"github.com/fieldops/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine, db *gorm.DB, hub *realtime.Hub, publisher services.EventPublisher, photoStore storage.PhotoStore) *services.NotificationService {
	// Initialize services
	notificationService := services.NewNotificationService(db, hub, publisher)
	gateService := services.NewGateService(db)
	jobService := services.NewJobService(db, notificationService)
	approvalService := services.NewApprovalService(db, notificationService)

	// Initialize controllers
	authController := controllers.NewAuthController(db)
	userController := controllers.NewUserController(db)
	teamController := controllers.NewTeamController(db)
	jobController := controllers.NewJobController(jobService)
	stepController := controllers.NewStepController(gateService, photoStore)
	approvalController := controllers.NewApprovalController(db, approvalService)
	costController := controllers.NewCostController(db)
	notificationController := controllers.NewNotificationController(db)
	wsController := controllers.NewWSController(hub)

	// API routes
	api := r.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authController.Login)
			auth.POST("/register", authController.Register)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		protected.Use(middleware.ClientVersionMiddleware())
		{
			protected.POST("/auth/refresh", authController.RefreshToken)
			protected.POST("/auth/change-password", authController.ChangePassword)

			// Users
			users := protected.Group("/users")
			{
				users.GET("/me", userController.GetCurrentUser)
				users.PUT("/me", userController.UpdateCurrentUser)
				users.GET("", userController.GetUsers)
				users.POST("", userController.AddUser)
				users.DELETE("/:id", userController.RemoveUser)
				users.PUT("/:id/role", userController.UpdateUserRole)
			}

			// Teams
			teams := protected.Group("/teams")
			{
				teams.POST("", teamController.CreateTeam)
				teams.GET("", teamController.GetTeams)
				teams.POST("/:id/members", teamController.AddMember)
				teams.DELETE("/:id/members/:userId", teamController.RemoveMember)
			}

			// Jobs
			jobs := protected.Group("/jobs")
			{
				jobs.POST("", jobController.CreateJob)
				jobs.GET("", jobController.GetJobs)
				jobs.GET("/:id", jobController.GetJob)
				jobs.PUT("/:id", jobController.UpdateJob)
				jobs.POST("/:id/start", jobController.StartJob)
				jobs.POST("/:id/complete", jobController.RequestCompletion)
				jobs.PUT("/:id/status", jobController.SetStatus)
				jobs.POST("/:id/assignments", jobController.AssignJob)
				jobs.POST("/:id/steps", stepController.AddStep)
				jobs.POST("/:id/costs", costController.CreateCost)
				jobs.GET("/:id/costs", costController.GetJobCosts)
			}

			// Steps and sub-steps
			steps := protected.Group("/steps")
			{
				steps.POST("/:id/toggle", stepController.ToggleStep)
				steps.POST("/:id/sub-steps", stepController.AddSubStep)
				steps.POST("/:id/approve", approvalController.ApproveStep)
				steps.POST("/:id/reject", approvalController.RejectStep)
			}

			subSteps := protected.Group("/sub-steps")
			{
				subSteps.POST("/:id/toggle", stepController.ToggleSubStep)
				subSteps.POST("/:id/photos", stepController.UploadPhotos)
				subSteps.POST("/:id/approve", approvalController.ApproveSubStep)
				subSteps.POST("/:id/reject", approvalController.RejectSubStep)
			}

			// Approvals
			approvals := protected.Group("/approvals")
			{
				approvals.GET("/pending", approvalController.GetPendingApprovals)
				approvals.POST("/:id/resolve", approvalController.ResolveApproval)
			}

			// Costs
			costs := protected.Group("/costs")
			{
				costs.POST("/:id/approve", approvalController.ApproveCost)
				costs.POST("/:id/reject", approvalController.RejectCost)
			}

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationController.GetNotifications)
				notifications.GET("/unread-count", notificationController.GetUnreadCount)
				notifications.PUT("/:id/read", notificationController.MarkRead)
				notifications.PUT("/read-all", notificationController.MarkAllRead)
			}

			// Live push
			protected.GET("/ws", wsController.Connect)
		}
	}

	return notificationService
}
