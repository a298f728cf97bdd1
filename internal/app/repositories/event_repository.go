package repositories

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/db"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/dberrors"
	"github.com/yigit/placementdesk/internal/pkg/logger"
)

var eventColumns = []string{
	"id", "title", "company", "description", "requirements", "eligible_classes",
	"is_open", "created_by", "created_at", "deadline",
}

// EventRepository handles database operations for placement events
type EventRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *db.PostgresDB) *EventRepository {
	return &EventRepository{db: db, sb: newBuilder()}
}

func scanEvent(row pgx.Row) (*models.PlacementEvent, error) {
	e := &models.PlacementEvent{}
	var classes []string
	err := row.Scan(&e.ID, &e.Title, &e.Company, &e.Description, &e.Requirements, &classes,
		&e.IsOpen, &e.CreatedBy, &e.CreatedAt, &e.Deadline)
	if err != nil {
		return nil, err
	}
	e.EligibleClasses = stringsToClasses(classes)
	e.AdditionalRequirements = []models.PlacementRequirement{}
	return e, nil
}

// CreateEvent inserts the event and its requirement rows in one transaction.
func (r *EventRepository) CreateEvent(ctx context.Context, event *models.PlacementEvent) error {
	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		sql, args, err := r.sb.Insert("placement_events").
			Columns("title", "company", "description", "requirements", "eligible_classes",
				"is_open", "created_by", "deadline").
			Values(event.Title, event.Company, event.Description, event.Requirements,
				classesToStrings(event.EligibleClasses), event.IsOpen, event.CreatedBy, event.Deadline).
			Suffix("RETURNING id, created_at").
			ToSql()
		if err != nil {
			return dbError(err, "failed to build create event query")
		}
		if err := tx.QueryRow(ctx, sql, args...).Scan(&event.ID, &event.CreatedAt); err != nil {
			return dbError(err, "error creating event")
		}

		for i := range event.AdditionalRequirements {
			req := &event.AdditionalRequirements[i]
			req.EventID = event.ID
			sql, args, err := r.sb.Insert("placement_requirements").
				Columns("event_id", "requirement_type", "required").
				Values(req.EventID, req.RequirementType, req.Required).
				Suffix("RETURNING id, created_at").
				ToSql()
			if err != nil {
				return dbError(err, "failed to build create requirement query")
			}
			if err := tx.QueryRow(ctx, sql, args...).Scan(&req.ID, &req.CreatedAt); err != nil {
				if dberrors.IsDuplicateConstraintError(err, "placement_requirements_event_type_key") {
					return apperrors.NewConflictError("requirement " + req.RequirementType + " listed twice")
				}
				return dbError(err, "error creating requirement")
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("title", event.Title).Msg("Error creating placement event")
		return err
	}
	return nil
}

// GetEvent retrieves an event with its requirements
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*models.PlacementEvent, error) {
	sql, args, err := r.sb.Select(eventColumns...).
		From("placement_events").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get event SQL")
		return nil, dbError(err, "failed to build get event query")
	}

	event, err := scanEvent(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		logger.Error().Err(err).Int64("eventID", id).Msg("Error scanning event row")
		return nil, dbError(err, "error getting event")
	}

	if err := r.attachRequirements(ctx, []*models.PlacementEvent{event}); err != nil {
		return nil, err
	}
	return event, nil
}

// ListEvents returns every event newest first, with requirements
func (r *EventRepository) ListEvents(ctx context.Context) ([]*models.PlacementEvent, error) {
	sql, args, err := r.sb.Select(eventColumns...).
		From("placement_events").
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list events SQL")
		return nil, dbError(err, "failed to build list events query")
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list events query")
		return nil, dbError(err, "error querying events")
	}
	defer rows.Close()

	events := []*models.PlacementEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, dbError(err, "error scanning event row")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating event rows")
	}

	if err := r.attachRequirements(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// attachRequirements loads requirement rows for all events in one query.
func (r *EventRepository) attachRequirements(ctx context.Context, events []*models.PlacementEvent) error {
	if len(events) == 0 {
		return nil
	}
	byID := make(map[int64]*models.PlacementEvent, len(events))
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}

	sql, args, err := r.sb.Select("id", "event_id", "requirement_type", "required", "created_at").
		From("placement_requirements").
		Where(squirrel.Eq{"event_id": ids}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return dbError(err, "failed to build list requirements query")
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list requirements query")
		return dbError(err, "error querying requirements")
	}
	defer rows.Close()

	for rows.Next() {
		var req models.PlacementRequirement
		if err := rows.Scan(&req.ID, &req.EventID, &req.RequirementType, &req.Required, &req.CreatedAt); err != nil {
			return dbError(err, "error scanning requirement row")
		}
		if e, ok := byID[req.EventID]; ok {
			e.AdditionalRequirements = append(e.AdditionalRequirements, req)
		}
	}
	if err := rows.Err(); err != nil {
		return dbError(err, "error iterating requirement rows")
	}
	return nil
}

// SetEventOpen opens or closes an event for applications
func (r *EventRepository) SetEventOpen(ctx context.Context, id int64, open bool) (*models.PlacementEvent, error) {
	sql, args, err := r.sb.Update("placement_events").
		Set("is_open", open).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building set event open SQL")
		return nil, dbError(err, "failed to build set event open query")
	}

	cmdTag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("eventID", id).Msg("Error executing set event open query")
		return nil, dbError(err, "error updating event")
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, apperrors.ErrEventNotFound
	}
	return r.GetEvent(ctx, id)
}
