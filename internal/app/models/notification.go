package models

import "time"

// NotificationType categorises an announcement.
type NotificationType string

const (
	NotificationPlacement  NotificationType = "placement"
	NotificationInternship NotificationType = "internship"
	NotificationGeneral    NotificationType = "general"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationPlacement, NotificationInternship, NotificationGeneral:
		return true
	}
	return false
}

// Notification is an append-only broadcast. Only ReadBy changes after creation.
type Notification struct {
	ID            int64            `json:"id" db:"id"`
	Title         string           `json:"title" db:"title"`
	Message       string           `json:"message" db:"message"`
	Type          NotificationType `json:"type" db:"type"`
	TargetClasses []StudentClass   `json:"targetClasses"` // Empty means all students
	CreatedBy     int64            `json:"createdBy" db:"created_by"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
	ReadBy        []int64          `json:"readBy"`
}

// ReadByUser reports whether userID has acknowledged the notification.
func (n *Notification) ReadByUser(userID int64) bool {
	for _, id := range n.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
