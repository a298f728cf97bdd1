package models

import "time"

// ApprovalRecord holds the two per-student workflow flags. A missing record is
// equivalent to both flags being off.
type ApprovalRecord struct {
	StudentID             int64      `json:"studentId" db:"student_id"`
	OfferLetterApproved   bool       `json:"offerLetterApproved" db:"offer_letter_approved"`
	OfferLetterApprovedAt *time.Time `json:"offerLetterApprovedAt,omitempty" db:"offer_letter_approved_at"`
	CreditsAwarded        bool       `json:"creditsAwarded" db:"credits_awarded"`
	CreditsAwardedAt      *time.Time `json:"creditsAwardedAt,omitempty" db:"credits_awarded_at"`
	UpdatedAt             time.Time  `json:"updatedAt" db:"updated_at"`
}
