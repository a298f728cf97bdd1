package dto

import (
	"time"

	"github.com/yigit/placementdesk/internal/app/models"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ReviewRequest is an admin decision on a submission
type ReviewRequest struct {
	Decision string  `json:"decision" binding:"required,oneof=approved rejected"`
	Feedback *string `json:"feedback" binding:"omitempty,max=2000"`
}

// SubmissionResponse represents one submission
type SubmissionResponse struct {
	StudentID      int64                   `json:"studentId" example:"1"`
	AssignmentType models.AssignmentType   `json:"assignmentType" example:"offer_letter"`
	FileURL        string                  `json:"fileUrl" example:"http://localhost:8080/uploads/documents/students/1/offer_letter.pdf"`
	Status         models.SubmissionStatus `json:"status" example:"submitted"`
	Feedback       *string                 `json:"feedback,omitempty"`
	SubmittedAt    string                  `json:"submittedAt" example:"2024-01-15T10:00:00Z"`
	ReviewedAt     *string                 `json:"reviewedAt,omitempty"`
}

// NewSubmissionResponse converts a submission model
func NewSubmissionResponse(s *models.Submission) *SubmissionResponse {
	if s == nil {
		return nil
	}
	return &SubmissionResponse{
		StudentID:      s.StudentID,
		AssignmentType: s.AssignmentType,
		FileURL:        s.FileURL,
		Status:         s.Status,
		Feedback:       s.Feedback,
		SubmittedAt:    formatTime(s.SubmittedAt),
		ReviewedAt:     formatTimePtr(s.ReviewedAt),
	}
}

// AssignmentSlotResponse is one catalog entry and the student's submission for it
type AssignmentSlotResponse struct {
	Type          models.AssignmentType   `json:"type" example:"weekly_report"`
	Title         string                  `json:"title" example:"Weekly Report"`
	Required      bool                    `json:"required"`
	UnlocksOthers bool                    `json:"unlocksOthers"`
	AwardsCredits bool                    `json:"awardsCredits"`
	Status        models.SubmissionStatus `json:"status" example:"not_submitted"`
	Locked        bool                    `json:"locked"`
	Submission    *SubmissionResponse     `json:"submission,omitempty"`
}

// AssignmentListResponse is the full assignment view of a student
type AssignmentListResponse struct {
	StudentID   int64                    `json:"studentId"`
	Assignments []AssignmentSlotResponse `json:"assignments"`
	Approval    ApprovalResponse         `json:"approval"`
}

// ApprovalResponse represents the reconciled approval flags of a student
type ApprovalResponse struct {
	StudentID             int64   `json:"studentId"`
	OfferLetterApproved   bool    `json:"offerLetterApproved"`
	OfferLetterApprovedAt *string `json:"offerLetterApprovedAt,omitempty"`
	CreditsAwarded        bool    `json:"creditsAwarded"`
	CreditsAwardedAt      *string `json:"creditsAwardedAt,omitempty"`
}

// NewApprovalResponse converts an approval record
func NewApprovalResponse(a *models.ApprovalRecord) ApprovalResponse {
	return ApprovalResponse{
		StudentID:             a.StudentID,
		OfferLetterApproved:   a.OfferLetterApproved,
		OfferLetterApprovedAt: formatTimePtr(a.OfferLetterApprovedAt),
		CreditsAwarded:        a.CreditsAwarded,
		CreditsAwardedAt:      formatTimePtr(a.CreditsAwardedAt),
	}
}
