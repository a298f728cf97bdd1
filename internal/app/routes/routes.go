package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/controllers"
	"github.com/yigit/placementdesk/internal/middleware"
	"github.com/yigit/placementdesk/internal/pkg/websocket"
)

// Controllers groups the HTTP handlers mounted by SetupRouter
type Controllers struct {
	Student      *controllers.StudentController
	Submission   *controllers.SubmissionController
	Event        *controllers.EventController
	Application  *controllers.ApplicationController
	Notification *controllers.NotificationController
	Health       *controllers.HealthController
}

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	ctrl Controllers,
	authMiddleware *middleware.AuthMiddleware,
	wsHandler *websocket.Handler,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public routes ---
	v1.GET("/health", ctrl.Health.Health)

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	adminOnly := authMiddleware.AdminRequired()

	// Change feed sessions
	authenticated.GET("/ws", wsHandler.HandleConnection)

	// Students, their submissions and approval state. Ownership is checked by
	// the services; adminOnly marks the routes students never reach.
	students := authenticated.Group("/students")
	{
		students.POST("", adminOnly, ctrl.Student.RegisterStudent)
		students.GET("", adminOnly, ctrl.Student.GetAllStudents)
		students.GET("/:id", ctrl.Student.GetStudentByID)
		students.PATCH("/:id", ctrl.Student.UpdateStudent)

		students.GET("/:id/submissions", ctrl.Submission.ListSubmissions)
		students.GET("/:id/submissions/:type", ctrl.Submission.GetSubmission)
		students.PUT("/:id/submissions/:type", ctrl.Submission.UploadSubmission)
		students.DELETE("/:id/submissions/:type", ctrl.Submission.WithdrawSubmission)
		students.POST("/:id/submissions/:type/review", adminOnly, ctrl.Submission.ReviewSubmission)

		students.GET("/:id/approval", ctrl.Submission.GetApproval)
		students.POST("/:id/approval/offer-letter", adminOnly, ctrl.Submission.ApproveOfferLetter)
		students.POST("/:id/approval/credits", adminOnly, ctrl.Submission.AwardCredits)
		students.DELETE("/:id/approval/credits", adminOnly, ctrl.Submission.RevokeCredits)
	}

	// Placement drives
	events := authenticated.Group("/events")
	{
		events.GET("", ctrl.Event.GetAllEvents)
		events.GET("/:id", ctrl.Event.GetEventByID)
		events.POST("", adminOnly, ctrl.Event.CreateEvent)
		events.PATCH("/:id", adminOnly, ctrl.Event.UpdateEvent)

		events.POST("/:id/applications", ctrl.Event.Apply)
		events.GET("/:id/applications", adminOnly, ctrl.Event.GetEventApplications)
	}

	// Applications
	applications := authenticated.Group("/applications")
	{
		applications.GET("", ctrl.Application.GetApplications)
		applications.GET("/:id", ctrl.Application.GetApplicationByID)
		applications.POST("/:id/accept", adminOnly, ctrl.Application.AcceptApplication)
		applications.POST("/:id/reject", adminOnly, ctrl.Application.RejectApplication)
		applications.PUT("/:id/offer-letter", ctrl.Application.UploadOfferLetter)
		applications.GET("/:id/requirements", ctrl.Application.GetRequirementSubmissions)
		applications.PUT("/:id/requirements/:reqId", ctrl.Application.UploadRequirement)
		applications.POST("/:id/requirements/:reqId/review", adminOnly, ctrl.Application.ReviewRequirement)
	}

	// Notifications
	notifications := authenticated.Group("/notifications")
	{
		notifications.GET("", ctrl.Notification.GetNotifications)
		notifications.POST("", adminOnly, ctrl.Notification.CreateNotification)
		notifications.POST("/:id/read", ctrl.Notification.MarkRead)
	}
}
