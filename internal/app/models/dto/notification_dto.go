package dto

import (
	"github.com/yigit/placementdesk/internal/app/models"
)

// CreateNotificationRequest represents a new announcement
type CreateNotificationRequest struct {
	Title         string   `json:"title" binding:"required,max=200"`
	Message       string   `json:"message" binding:"max=5000"`
	Type          string   `json:"type" binding:"omitempty,oneof=placement internship general"`
	TargetClasses []string `json:"targetClasses" binding:"omitempty,dive,student_class"`
}

// NotificationResponse represents an announcement as seen by one user
type NotificationResponse struct {
	ID            int64                   `json:"id"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	Type          models.NotificationType `json:"type" example:"placement"`
	TargetClasses []models.StudentClass   `json:"targetClasses"`
	CreatedAt     string                  `json:"createdAt"`
	Read          bool                    `json:"read"`
}

// NewNotificationResponse converts a notification for userID
func NewNotificationResponse(n *models.Notification, userID int64) NotificationResponse {
	return NotificationResponse{
		ID:            n.ID,
		Title:         n.Title,
		Message:       n.Message,
		Type:          n.Type,
		TargetClasses: append([]models.StudentClass{}, n.TargetClasses...),
		CreatedAt:     formatTime(n.CreatedAt),
		Read:          n.ReadByUser(userID),
	}
}

// NotificationFeedResponse is the capped recent list plus the unread count
type NotificationFeedResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int                    `json:"unreadCount"`
	Total         int                    `json:"total"`
}
