package dto

import (
	"time"

	"github.com/yigit/placementdesk/internal/app/models"
)

// RequirementRequest is one additional document a drive asks for
type RequirementRequest struct {
	RequirementType string `json:"requirementType" binding:"required,max=100"`
	Required        bool   `json:"required"`
}

// CreateEventRequest represents a new placement drive
type CreateEventRequest struct {
	Title                  string               `json:"title" binding:"required,max=200"`
	Company                string               `json:"company" binding:"required,max=200"`
	Description            string               `json:"description" binding:"max=5000"`
	Requirements           string               `json:"requirements" binding:"max=5000"`
	EligibleClasses        []string             `json:"eligibleClasses" binding:"omitempty,dive,student_class"`
	AdditionalRequirements []RequirementRequest `json:"additionalRequirements" binding:"omitempty,dive"`
	Deadline               *time.Time           `json:"deadline"`
}

// ToModel converts the request into an open placement event
func (r CreateEventRequest) ToModel() *models.PlacementEvent {
	event := &models.PlacementEvent{
		Title:        r.Title,
		Company:      r.Company,
		Description:  r.Description,
		Requirements: r.Requirements,
		IsOpen:       true,
		Deadline:     r.Deadline,
	}
	for _, c := range r.EligibleClasses {
		event.EligibleClasses = append(event.EligibleClasses, models.StudentClass(c))
	}
	for _, req := range r.AdditionalRequirements {
		event.AdditionalRequirements = append(event.AdditionalRequirements, models.PlacementRequirement{
			RequirementType: req.RequirementType,
			Required:        req.Required,
		})
	}
	return event
}

// UpdateEventRequest opens or closes a drive
type UpdateEventRequest struct {
	IsOpen *bool `json:"isOpen" binding:"required"`
}

// DecisionRequest carries optional admin notes for accept/reject
type DecisionRequest struct {
	Notes *string `json:"notes" binding:"omitempty,max=2000"`
}

// RequirementResponse represents a drive requirement
type RequirementResponse struct {
	ID              int64  `json:"id"`
	RequirementType string `json:"requirementType" example:"Resume"`
	Required        bool   `json:"required"`
}

// EventResponse represents a placement drive
type EventResponse struct {
	ID                     int64                 `json:"id"`
	Title                  string                `json:"title" example:"Graduate Engineer Trainee"`
	Company                string                `json:"company" example:"Acme"`
	Description            string                `json:"description"`
	Requirements           string                `json:"requirements"`
	EligibleClasses        []models.StudentClass `json:"eligibleClasses"`
	AdditionalRequirements []RequirementResponse `json:"additionalRequirements"`
	IsOpen                 bool                  `json:"isOpen"`
	AcceptingApplications  bool                  `json:"acceptingApplications"`
	CreatedAt              string                `json:"createdAt"`
	Deadline               *string               `json:"deadline,omitempty"`
}

// NewEventResponse converts a placement event
func NewEventResponse(e *models.PlacementEvent) EventResponse {
	resp := EventResponse{
		ID:                     e.ID,
		Title:                  e.Title,
		Company:                e.Company,
		Description:            e.Description,
		Requirements:           e.Requirements,
		EligibleClasses:        append([]models.StudentClass{}, e.EligibleClasses...),
		AdditionalRequirements: make([]RequirementResponse, 0, len(e.AdditionalRequirements)),
		IsOpen:                 e.IsOpen,
		AcceptingApplications:  e.AcceptsApplications(time.Now()),
		CreatedAt:              formatTime(e.CreatedAt),
		Deadline:               formatTimePtr(e.Deadline),
	}
	for _, r := range e.AdditionalRequirements {
		resp.AdditionalRequirements = append(resp.AdditionalRequirements, RequirementResponse{
			ID:              r.ID,
			RequirementType: r.RequirementType,
			Required:        r.Required,
		})
	}
	return resp
}

// ApplicationResponse represents an application to a drive
type ApplicationResponse struct {
	ID             int64                    `json:"id"`
	StudentID      int64                    `json:"studentId"`
	EventID        int64                    `json:"eventId"`
	Status         models.ApplicationStatus `json:"status" example:"applied"`
	AppliedAt      string                   `json:"appliedAt"`
	AdminNotes     *string                  `json:"adminNotes,omitempty"`
	OfferLetterURL *string                  `json:"offerLetterUrl,omitempty"`
}

// NewApplicationResponse converts an application
func NewApplicationResponse(a *models.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:             a.ID,
		StudentID:      a.StudentID,
		EventID:        a.EventID,
		Status:         a.Status,
		AppliedAt:      formatTime(a.AppliedAt),
		AdminNotes:     a.AdminNotes,
		OfferLetterURL: a.OfferLetterURL,
	}
}

// RequirementSubmissionResponse represents an upload against a drive requirement
type RequirementSubmissionResponse struct {
	ApplicationID int64                   `json:"applicationId"`
	RequirementID int64                   `json:"requirementId"`
	FileURL       string                  `json:"fileUrl"`
	Status        models.SubmissionStatus `json:"status"`
	Feedback      *string                 `json:"feedback,omitempty"`
	SubmittedAt   string                  `json:"submittedAt"`
}

// NewRequirementSubmissionResponse converts a requirement submission
func NewRequirementSubmissionResponse(s *models.RequirementSubmission) RequirementSubmissionResponse {
	return RequirementSubmissionResponse{
		ApplicationID: s.ApplicationID,
		RequirementID: s.RequirementID,
		FileURL:       s.FileURL,
		Status:        s.Status,
		Feedback:      s.Feedback,
		SubmittedAt:   formatTime(s.SubmittedAt),
	}
}
