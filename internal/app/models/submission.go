package models

import "time"

// SubmissionStatus is the review state of a submitted document.
type SubmissionStatus string

const (
	// SubmissionNotSubmitted is never stored; it marks an empty catalog slot.
	SubmissionNotSubmitted SubmissionStatus = "not_submitted"
	SubmissionSubmitted    SubmissionStatus = "submitted"
	SubmissionApproved     SubmissionStatus = "approved"
	SubmissionRejected     SubmissionStatus = "rejected"
)

// Submission is a student's upload for one assignment type. There is at most
// one per (StudentID, AssignmentType).
type Submission struct {
	StudentID      int64            `json:"studentId" db:"student_id"`
	AssignmentType AssignmentType   `json:"assignmentType" db:"assignment_type"`
	FileURL        string           `json:"fileUrl" db:"file_url"`
	Status         SubmissionStatus `json:"status" db:"status"`
	Feedback       *string          `json:"feedback,omitempty" db:"feedback"`
	SubmittedAt    time.Time        `json:"submittedAt" db:"submitted_at"`
	ReviewedAt     *time.Time       `json:"reviewedAt,omitempty" db:"reviewed_at"`
}
