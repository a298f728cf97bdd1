package models

import "time"

// PlacementEvent is a drive posted by an admin.
type PlacementEvent struct {
	ID                     int64                  `json:"id" db:"id"`
	Title                  string                 `json:"title" db:"title"`
	Company                string                 `json:"company" db:"company"`
	Description            string                 `json:"description" db:"description"`
	Requirements           string                 `json:"requirements" db:"requirements"`
	EligibleClasses        []StudentClass         `json:"eligibleClasses" db:"eligible_classes"` // Empty means open to all
	AdditionalRequirements []PlacementRequirement `json:"additionalRequirements"`
	IsOpen                 bool                   `json:"isOpen" db:"is_open"`
	CreatedBy              int64                  `json:"createdBy" db:"created_by"`
	CreatedAt              time.Time              `json:"createdAt" db:"created_at"`
	Deadline               *time.Time             `json:"deadline,omitempty" db:"deadline"`
}

// AcceptsApplications reports whether the event is open at time now.
func (e *PlacementEvent) AcceptsApplications(now time.Time) bool {
	if !e.IsOpen {
		return false
	}
	return e.Deadline == nil || now.Before(*e.Deadline)
}

// VisibleTo applies the class eligibility filter.
func (e *PlacementEvent) VisibleTo(class StudentClass) bool {
	return ClassEligible(e.EligibleClasses, class)
}

// PlacementRequirement is an additional document type attached to one event.
type PlacementRequirement struct {
	ID              int64     `json:"id" db:"id"`
	EventID         int64     `json:"eventId" db:"event_id"`
	RequirementType string    `json:"requirementType" db:"requirement_type"`
	Required        bool      `json:"required" db:"required"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
