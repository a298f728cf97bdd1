package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/app/services"
	"github.com/yigit/placementdesk/internal/middleware"
)

// NotificationController handles announcements
type NotificationController struct {
	dispatcher *services.NotificationDispatcher
}

// NewNotificationController creates a new NotificationController
func NewNotificationController(dispatcher *services.NotificationDispatcher) *NotificationController {
	return &NotificationController{
		dispatcher: dispatcher,
	}
}

// CreateNotification publishes an announcement
// @Summary Publish notification
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateNotificationRequest true "Notification"
// @Success 201 {object} dto.APIResponse{data=dto.NotificationResponse}
// @Router /notifications [post]
func (c *NotificationController) CreateNotification(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.CreateNotificationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindError(ctx, err)
		return
	}

	input := services.NewNotification{
		Title:   req.Title,
		Message: req.Message,
		Type:    models.NotificationType(req.Type),
	}
	for _, class := range req.TargetClasses {
		input.TargetClasses = append(input.TargetClasses, models.StudentClass(class))
	}

	notification, err := c.dispatcher.Publish(ctx.Request.Context(), p, input)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusCreated, dto.NewNotificationResponse(notification, p.UserID))
}

// GetNotifications returns the caller's recent notifications and unread count
// @Summary Notification feed
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.NotificationFeedResponse}
// @Router /notifications [get]
func (c *NotificationController) GetNotifications(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	feed, err := c.dispatcher.Feed(ctx.Request.Context(), p)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := dto.NotificationFeedResponse{
		Notifications: make([]dto.NotificationResponse, 0, len(feed.Recent)),
		UnreadCount:   feed.Unread,
		Total:         feed.Total,
	}
	for _, n := range feed.Recent {
		resp.Notifications = append(resp.Notifications, dto.NewNotificationResponse(n, p.UserID))
	}
	respond(ctx, http.StatusOK, resp)
}

// MarkRead marks a notification read for the caller
// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} dto.APIResponse{data=dto.NotificationResponse}
// @Router /notifications/{id}/read [post]
func (c *NotificationController) MarkRead(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id", "Notification")
	if !ok {
		return
	}

	notification, err := c.dispatcher.MarkRead(ctx.Request.Context(), p, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respond(ctx, http.StatusOK, dto.NewNotificationResponse(notification, p.UserID))
}
