package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

func copyNotification(n *models.Notification) *models.Notification {
	c := *n
	c.TargetClasses = append([]models.StudentClass{}, n.TargetClasses...)
	c.ReadBy = append([]int64{}, n.ReadBy...)
	return &c
}

func (db *DB) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if err := db.lockWrite(ctx); err != nil {
		return err
	}
	defer db.mu.Unlock()

	db.nextNotificationID++
	notification.ID = db.nextNotificationID
	notification.CreatedAt = stamp(notification.CreatedAt)
	notification.ReadBy = []int64{}
	db.notifications[notification.ID] = copyNotification(notification)
	return nil
}

func (db *DB) GetNotification(_ context.Context, id int64) (*models.Notification, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if n, ok := db.notifications[id]; ok {
		return copyNotification(n), nil
	}
	return nil, apperrors.ErrNotificationNotFound
}

func (db *DB) ListNotifications(_ context.Context, filter repositories.NotificationFilter) ([]*models.Notification, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	notifications := []*models.Notification{}
	for _, n := range db.notifications {
		if filter.Class != nil && !models.ClassEligible(n.TargetClasses, *filter.Class) {
			continue
		}
		notifications = append(notifications, copyNotification(n))
	}
	sort.Slice(notifications, func(i, j int) bool {
		if !notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
		}
		return notifications[i].ID > notifications[j].ID
	})
	return notifications, nil
}

func (db *DB) MarkNotificationRead(ctx context.Context, id, userID int64, _ time.Time) error {
	if err := db.lockWrite(ctx); err != nil {
		return err
	}
	defer db.mu.Unlock()

	n, ok := db.notifications[id]
	if !ok {
		return apperrors.ErrNotificationNotFound
	}
	if !n.ReadByUser(userID) {
		n.ReadBy = append(n.ReadBy, userID)
	}
	return nil
}
