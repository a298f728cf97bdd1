package memory

import (
	"context"
	"sort"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

func copyEvent(e *models.PlacementEvent) *models.PlacementEvent {
	c := *e
	c.EligibleClasses = append([]models.StudentClass{}, e.EligibleClasses...)
	c.AdditionalRequirements = append([]models.PlacementRequirement{}, e.AdditionalRequirements...)
	c.Deadline = cloneTime(e.Deadline)
	return &c
}

func (db *DB) CreateEvent(ctx context.Context, event *models.PlacementEvent) error {
	if err := db.lockWrite(ctx); err != nil {
		return err
	}
	defer db.mu.Unlock()

	seen := make(map[string]bool, len(event.AdditionalRequirements))
	for _, req := range event.AdditionalRequirements {
		if seen[req.RequirementType] {
			return apperrors.NewConflictError("requirement " + req.RequirementType + " listed twice")
		}
		seen[req.RequirementType] = true
	}

	db.nextEventID++
	event.ID = db.nextEventID
	event.CreatedAt = stamp(event.CreatedAt)
	for i := range event.AdditionalRequirements {
		db.nextRequirementID++
		req := &event.AdditionalRequirements[i]
		req.ID = db.nextRequirementID
		req.EventID = event.ID
		req.CreatedAt = event.CreatedAt
	}
	db.events[event.ID] = copyEvent(event)
	return nil
}

func (db *DB) GetEvent(_ context.Context, id int64) (*models.PlacementEvent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if e, ok := db.events[id]; ok {
		return copyEvent(e), nil
	}
	return nil, apperrors.ErrEventNotFound
}

func (db *DB) ListEvents(context.Context) ([]*models.PlacementEvent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	events := make([]*models.PlacementEvent, 0, len(db.events))
	for _, e := range db.events {
		events = append(events, copyEvent(e))
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].ID > events[j].ID
	})
	return events, nil
}

func (db *DB) SetEventOpen(ctx context.Context, id int64, open bool) (*models.PlacementEvent, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	e, ok := db.events[id]
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	e.IsOpen = open
	return copyEvent(e), nil
}
