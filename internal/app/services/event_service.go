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

// EventService manages placement drives.
type EventService struct {
	store         repositories.Store
	notifications *NotificationDispatcher
	feed          changefeed.Publisher
	log           zerolog.Logger
}

// NewEventService creates a new event service
func NewEventService(store repositories.Store, notifications *NotificationDispatcher, feed changefeed.Publisher, log zerolog.Logger) *EventService {
	return &EventService{
		store:         store,
		notifications: notifications,
		feed:          feed,
		log:           log.With().Str("service", "placement_events").Logger(),
	}
}

// validateEvent validates event data before database operations
func validateEvent(event *models.PlacementEvent) error {
	if event == nil {
		return apperrors.NewValidationError("event is nil")
	}
	event.Title = strings.TrimSpace(event.Title)
	event.Company = strings.TrimSpace(event.Company)
	if event.Title == "" {
		return apperrors.NewValidationError("event title is required")
	}
	if event.Company == "" {
		return apperrors.NewValidationError("company is required")
	}

	classes, err := validateClasses(event.EligibleClasses)
	if err != nil {
		return err
	}
	event.EligibleClasses = classes

	seen := make(map[string]bool, len(event.AdditionalRequirements))
	for i := range event.AdditionalRequirements {
		req := &event.AdditionalRequirements[i]
		req.RequirementType = strings.TrimSpace(req.RequirementType)
		if req.RequirementType == "" {
			return apperrors.NewValidationError("requirement type cannot be empty")
		}
		key := strings.ToLower(req.RequirementType)
		if seen[key] {
			return apperrors.NewValidationError(fmt.Sprintf("requirement %q listed twice", req.RequirementType))
		}
		seen[key] = true
	}
	return nil
}

// Create posts a drive with its requirement rows and announces it to the
// eligible classes.
func (s *EventService) Create(ctx context.Context, p auth.Principal, event *models.PlacementEvent) (*models.PlacementEvent, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	event.CreatedBy = p.UserID
	event.CreatedAt = now()
	if event.Deadline != nil && !event.Deadline.After(event.CreatedAt) {
		return nil, apperrors.NewValidationError("deadline must be in the future")
	}

	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("error creating placement event: %w", err)
	}

	s.log.Info().Int64("eventID", event.ID).Str("company", event.Company).Msg("Placement event created")
	emit(ctx, s.feed, changefeed.Event{
		Table:   changefeed.TableEvents,
		Op:      changefeed.OpInsert,
		Key:     strconv.FormatInt(event.ID, 10),
		EventID: event.ID,
		Classes: classNames(event.EligibleClasses),
	})

	// The drive exists even if the announcement fails.
	if _, err := s.notifications.publish(ctx, p.UserID, NewNotification{
		Title:         fmt.Sprintf("New placement drive: %s", event.Company),
		Message:       event.Title,
		Type:          models.NotificationPlacement,
		TargetClasses: event.EligibleClasses,
	}); err != nil {
		s.log.Warn().Err(err).Int64("eventID", event.ID).Msg("Failed to announce placement event")
	}
	return event, nil
}

// studentClass returns nil for admins and the student's class otherwise.
func (s *EventService) studentClass(ctx context.Context, p auth.Principal) (*models.StudentClass, error) {
	if p.IsAdmin() {
		return nil, nil
	}
	student, err := s.store.GetStudentByID(ctx, p.StudentID)
	if err != nil {
		return nil, err
	}
	return &student.Class, nil
}

// List returns the drives visible to p. Students only see drives open to
// their class.
func (s *EventService) List(ctx context.Context, p auth.Principal) ([]*models.PlacementEvent, error) {
	class, err := s.studentClass(ctx, p)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing placement events: %w", err)
	}
	if class == nil {
		return events, nil
	}

	visible := make([]*models.PlacementEvent, 0, len(events))
	for _, e := range events {
		if e.VisibleTo(*class) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// Get returns a drive. Drives outside a student's class are reported as not found.
func (s *EventService) Get(ctx context.Context, p auth.Principal, id int64) (*models.PlacementEvent, error) {
	class, err := s.studentClass(ctx, p)
	if err != nil {
		return nil, err
	}
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if class != nil && !event.VisibleTo(*class) {
		return nil, apperrors.ErrEventNotFound
	}
	return event, nil
}

// SetOpen opens or closes a drive for applications. Admin only.
func (s *EventService) SetOpen(ctx context.Context, p auth.Principal, id int64, open bool) (*models.PlacementEvent, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	event, err := s.store.SetEventOpen(ctx, id, open)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("eventID", id).Bool("open", open).Msg("Placement event updated")
	emit(ctx, s.feed, changefeed.Event{
		Table:   changefeed.TableEvents,
		Op:      changefeed.OpUpdate,
		Key:     strconv.FormatInt(id, 10),
		EventID: id,
		Classes: classNames(event.EligibleClasses),
	})
	return event, nil
}
