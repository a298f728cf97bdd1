package models

import "time"

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApplied  ApplicationStatus = "applied"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Final reports whether no further transition is allowed.
func (s ApplicationStatus) Final() bool {
	return s == ApplicationAccepted || s == ApplicationRejected
}

// Application links one student to one placement event.
type Application struct {
	ID             int64             `json:"id" db:"id"`
	StudentID      int64             `json:"studentId" db:"student_id"`
	EventID        int64             `json:"eventId" db:"event_id"`
	Status         ApplicationStatus `json:"status" db:"status"`
	AppliedAt      time.Time         `json:"appliedAt" db:"applied_at"`
	AdminNotes     *string           `json:"adminNotes,omitempty" db:"admin_notes"`
	OfferLetterURL *string           `json:"offerLetterUrl,omitempty" db:"offer_letter_url"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// RequirementSubmission is an upload against one of an event's additional
// requirements, scoped to an application.
type RequirementSubmission struct {
	ApplicationID int64            `json:"applicationId" db:"application_id"`
	RequirementID int64            `json:"requirementId" db:"requirement_id"`
	FileURL       string           `json:"fileUrl" db:"file_url"`
	Status        SubmissionStatus `json:"status" db:"status"`
	Feedback      *string          `json:"feedback,omitempty" db:"feedback"`
	SubmittedAt   time.Time        `json:"submittedAt" db:"submitted_at"`
}
