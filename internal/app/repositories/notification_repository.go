package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/db"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/dberrors"
	"github.com/yigit/placementdesk/internal/pkg/logger"
)

// NotificationRepository handles database operations for announcements
type NotificationRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *db.PostgresDB) *NotificationRepository {
	return &NotificationRepository{db: db, sb: newBuilder()}
}

// notificationSelect aggregates the reader set into an array column.
func (r *NotificationRepository) notificationSelect() squirrel.SelectBuilder {
	return r.sb.Select(
		"n.id", "n.title", "n.message", "n.type", "n.target_classes", "n.created_by", "n.created_at",
		"COALESCE(ARRAY_AGG(nr.user_id ORDER BY nr.read_at) FILTER (WHERE nr.user_id IS NOT NULL), '{}') AS read_by",
	).
		From("notifications n").
		LeftJoin("notification_reads nr ON nr.notification_id = n.id").
		GroupBy("n.id")
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	n := &models.Notification{}
	var kind string
	var classes []string
	err := row.Scan(&n.ID, &n.Title, &n.Message, &kind, &classes, &n.CreatedBy, &n.CreatedAt, &n.ReadBy)
	if err != nil {
		return nil, err
	}
	n.Type = models.NotificationType(kind)
	n.TargetClasses = stringsToClasses(classes)
	return n, nil
}

// CreateNotification inserts an announcement
func (r *NotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	sql, args, err := r.sb.Insert("notifications").
		Columns("title", "message", "type", "target_classes", "created_by").
		Values(notification.Title, notification.Message, string(notification.Type),
			classesToStrings(notification.TargetClasses), notification.CreatedBy).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create notification SQL")
		return dbError(err, "failed to build create notification query")
	}

	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&notification.ID, &notification.CreatedAt); err != nil {
		logger.Error().Err(err).Msg("Error executing create notification query")
		return dbError(err, "error creating notification")
	}
	notification.ReadBy = []int64{}
	return nil
}

// GetNotification retrieves an announcement with its reader set
func (r *NotificationRepository) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	sql, args, err := r.notificationSelect().
		Where(squirrel.Eq{"n.id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get notification SQL")
		return nil, dbError(err, "failed to build get notification query")
	}

	notification, err := scanNotification(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotificationNotFound
		}
		logger.Error().Err(err).Int64("notificationID", id).Msg("Error scanning notification row")
		return nil, dbError(err, "error getting notification")
	}
	return notification, nil
}

// ListNotifications returns announcements most recent first
func (r *NotificationRepository) ListNotifications(ctx context.Context, filter NotificationFilter) ([]*models.Notification, error) {
	query := r.notificationSelect().OrderBy("n.created_at DESC", "n.id DESC")
	if filter.Class != nil {
		query = query.Where(squirrel.Or{
			squirrel.Expr("cardinality(n.target_classes) = 0"),
			squirrel.Expr("? = ANY(n.target_classes)", string(*filter.Class)),
		})
	}
	sql, args, err := query.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list notifications SQL")
		return nil, dbError(err, "failed to build list notifications query")
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list notifications query")
		return nil, dbError(err, "error querying notifications")
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, dbError(err, "error scanning notification row")
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating notification rows")
	}
	return notifications, nil
}

// MarkNotificationRead records an acknowledgement; a repeated one is ignored.
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, id, userID int64, at time.Time) error {
	sql, args, err := r.sb.Insert("notification_reads").
		Columns("notification_id", "user_id", "read_at").
		Values(id, userID, at).
		Suffix("ON CONFLICT (notification_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building mark notification read SQL")
		return dbError(err, "failed to build mark notification read query")
	}

	if _, err := r.db.Pool.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrNotificationNotFound
		}
		logger.Error().Err(err).Int64("notificationID", id).Int64("userID", userID).
			Msg("Error executing mark notification read query")
		return dbError(err, "error marking notification read")
	}
	return nil
}
