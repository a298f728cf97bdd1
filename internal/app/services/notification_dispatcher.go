package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
)

// NewNotification is the input of Publish. Empty TargetClasses addresses
// every student.
type NewNotification struct {
	Title         string
	Message       string
	Type          models.NotificationType
	TargetClasses []models.StudentClass
}

// NotificationFeed is what a session shows: the most recent visible
// notifications and the unread count over all visible ones.
type NotificationFeed struct {
	Recent []*models.Notification
	Unread int
	Total  int
}

// NotificationDispatcher creates announcements and tracks who has read them.
type NotificationDispatcher struct {
	store  repositories.Store
	recent int
	feed   changefeed.Publisher
	log    zerolog.Logger
}

// NewNotificationDispatcher creates a new notification dispatcher
func NewNotificationDispatcher(store repositories.Store, recent int, feed changefeed.Publisher, log zerolog.Logger) *NotificationDispatcher {
	if recent <= 0 {
		recent = 10
	}
	return &NotificationDispatcher{
		store:  store,
		recent: recent,
		feed:   feed,
		log:    log.With().Str("service", "notification_dispatcher").Logger(),
	}
}

// Publish creates an announcement. Admin only.
func (d *NotificationDispatcher) Publish(ctx context.Context, p auth.Principal, input NewNotification) (*models.Notification, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	return d.publish(ctx, p.UserID, input)
}

func (d *NotificationDispatcher) publish(ctx context.Context, createdBy int64, input NewNotification) (*models.Notification, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("notification title is required")
	}
	if input.Type == "" {
		input.Type = models.NotificationGeneral
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown notification type %q", input.Type))
	}
	classes, err := validateClasses(input.TargetClasses)
	if err != nil {
		return nil, err
	}

	notification := &models.Notification{
		Title:         title,
		Message:       strings.TrimSpace(input.Message),
		Type:          input.Type,
		TargetClasses: classes,
		CreatedBy:     createdBy,
		CreatedAt:     now(),
	}
	if err := d.store.CreateNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("error creating notification: %w", err)
	}

	d.log.Info().
		Int64("notificationID", notification.ID).
		Str("type", string(notification.Type)).
		Int("targetClasses", len(classes)).
		Msg("Notification published")
	emit(ctx, d.feed, changefeed.Event{
		Table:   changefeed.TableNotifications,
		Op:      changefeed.OpInsert,
		Key:     strconv.FormatInt(notification.ID, 10),
		Classes: classNames(notification.TargetClasses),
	})
	return notification, nil
}

// visibleClass returns the class filter for p: nil for admins, the student's
// class otherwise.
func (d *NotificationDispatcher) visibleClass(ctx context.Context, p auth.Principal) (*models.StudentClass, error) {
	if p.IsAdmin() {
		return nil, nil
	}
	student, err := d.store.GetStudentByID(ctx, p.StudentID)
	if err != nil {
		return nil, err
	}
	class := student.Class
	return &class, nil
}

// Feed returns the capped recent list visible to p and p's unread count.
func (d *NotificationDispatcher) Feed(ctx context.Context, p auth.Principal) (*NotificationFeed, error) {
	class, err := d.visibleClass(ctx, p)
	if err != nil {
		return nil, err
	}
	notifications, err := d.store.ListNotifications(ctx, repositories.NotificationFilter{Class: class})
	if err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}

	recent := notifications
	if len(recent) > d.recent {
		recent = recent[:d.recent]
	}
	return &NotificationFeed{
		Recent: recent,
		Unread: UnreadCountFor(p.UserID, notifications),
		Total:  len(notifications),
	}, nil
}

// MarkRead records that p has read the notification. Repeating it is a no-op.
func (d *NotificationDispatcher) MarkRead(ctx context.Context, p auth.Principal, notificationID int64) (*models.Notification, error) {
	notification, err := d.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	class, err := d.visibleClass(ctx, p)
	if err != nil {
		return nil, err
	}
	if class != nil && !models.ClassEligible(notification.TargetClasses, *class) {
		return nil, apperrors.ErrNotificationNotFound
	}
	if notification.ReadByUser(p.UserID) {
		return notification, nil
	}

	if err := d.store.MarkNotificationRead(ctx, notificationID, p.UserID, now()); err != nil {
		return nil, fmt.Errorf("error marking notification read: %w", err)
	}
	notification.ReadBy = append(notification.ReadBy, p.UserID)

	d.log.Debug().Int64("notificationID", notificationID).Int64("userID", p.UserID).Msg("Notification read")
	emit(ctx, d.feed, changefeed.Event{
		Table:   changefeed.TableNotifications,
		Op:      changefeed.OpUpdate,
		Key:     strconv.FormatInt(notificationID, 10),
		Classes: classNames(notification.TargetClasses),
	})
	return notification, nil
}

// UnreadCountFor counts the notifications userID has not read.
func UnreadCountFor(userID int64, notifications []*models.Notification) int {
	unread := 0
	for _, n := range notifications {
		if !n.ReadByUser(userID) {
			unread++
		}
	}
	return unread
}
