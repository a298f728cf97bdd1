package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

func copyApproval(a *models.ApprovalRecord) *models.ApprovalRecord {
	c := *a
	c.OfferLetterApprovedAt = cloneTime(a.OfferLetterApprovedAt)
	c.CreditsAwardedAt = cloneTime(a.CreditsAwardedAt)
	return &c
}

func (db *DB) GetApproval(_ context.Context, studentID int64) (*models.ApprovalRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if a, ok := db.approvals[studentID]; ok {
		return copyApproval(a), nil
	}
	return nil, apperrors.ErrApprovalNotFound
}

func (db *DB) ListApprovals(context.Context) ([]*models.ApprovalRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	approvals := make([]*models.ApprovalRecord, 0, len(db.approvals))
	for _, a := range db.approvals {
		approvals = append(approvals, copyApproval(a))
	}
	sort.Slice(approvals, func(i, j int) bool { return approvals[i].StudentID < approvals[j].StudentID })
	return approvals, nil
}

// approval returns the record for studentID, creating it lazily. Requires the write lock.
func (db *DB) approval(studentID int64) *models.ApprovalRecord {
	a, ok := db.approvals[studentID]
	if !ok {
		a = &models.ApprovalRecord{StudentID: studentID}
		db.approvals[studentID] = a
	}
	return a
}

func (db *DB) ApproveOfferLetter(ctx context.Context, studentID int64, offerLetter models.AssignmentType, at time.Time) (*models.ApprovalRecord, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	at = stamp(at)
	if _, err := db.setSubmissionStatus(studentID, offerLetter, repositories.SubmissionReview{
		Status:     models.SubmissionApproved,
		ReviewedAt: at,
	}); err != nil {
		return nil, err
	}

	a := db.approval(studentID)
	a.OfferLetterApproved = true
	a.OfferLetterApprovedAt = timePtr(at)
	a.UpdatedAt = at
	return copyApproval(a), nil
}

func (db *DB) AwardCredits(ctx context.Context, studentID int64, completion models.AssignmentType, credits int, at time.Time) (*models.ApprovalRecord, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	if _, ok := db.submissions[submissionKey{studentID, completion}]; !ok {
		return nil, apperrors.ErrSubmissionNotFound
	}
	student, ok := db.students[studentID]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	if a, ok := db.approvals[studentID]; ok && a.CreditsAwarded {
		return nil, apperrors.ErrAlreadyAwarded
	}

	at = stamp(at)
	if _, err := db.setSubmissionStatus(studentID, completion, repositories.SubmissionReview{
		Status:     models.SubmissionApproved,
		ReviewedAt: at,
	}); err != nil {
		return nil, err
	}
	student.TotalCredits += credits
	student.UpdatedAt = at

	a := db.approval(studentID)
	a.CreditsAwarded = true
	a.CreditsAwardedAt = timePtr(at)
	a.UpdatedAt = at
	return copyApproval(a), nil
}

func (db *DB) RevokeCredits(ctx context.Context, studentID int64, credits int, at time.Time) (*models.ApprovalRecord, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	return db.revokeCredits(studentID, credits, stamp(at))
}

// revokeCredits requires the write lock.
func (db *DB) revokeCredits(studentID int64, credits int, at time.Time) (*models.ApprovalRecord, error) {
	a, ok := db.approvals[studentID]
	if !ok || !a.CreditsAwarded {
		return nil, apperrors.ErrCreditsNotAwarded
	}
	if student, ok := db.students[studentID]; ok {
		student.TotalCredits -= credits
		if student.TotalCredits < 0 {
			student.TotalCredits = 0
		}
		student.UpdatedAt = at
	}
	a.CreditsAwarded = false
	a.CreditsAwardedAt = nil
	a.UpdatedAt = at
	return copyApproval(a), nil
}

func (db *DB) ReconcileApproval(ctx context.Context, studentID int64, rule repositories.ReconcileRule) (*models.ApprovalRecord, repositories.ReconcileResult, error) {
	var result repositories.ReconcileResult

	if err := ctx.Err(); err != nil {
		return nil, result, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.approvals[studentID]
	if !ok {
		return nil, result, apperrors.ErrApprovalNotFound
	}

	_, hasOffer := db.submissions[submissionKey{studentID, rule.OfferLetter}]
	_, hasCompletion := db.submissions[submissionKey{studentID, rule.Completion}]
	needsFix := (a.OfferLetterApproved && !hasOffer) || (a.CreditsAwarded && !hasCompletion)
	if !needsFix {
		return copyApproval(a), result, nil
	}
	if db.readOnly {
		// Demo mode reports the corrected view without persisting it.
		view := copyApproval(a)
		if view.OfferLetterApproved && !hasOffer {
			view.OfferLetterApproved, view.OfferLetterApprovedAt = false, nil
		}
		if view.CreditsAwarded && !hasCompletion {
			view.CreditsAwarded, view.CreditsAwardedAt = false, nil
		}
		return view, result, nil
	}

	at := stamp(rule.At)
	if a.OfferLetterApproved && !hasOffer {
		a.OfferLetterApproved = false
		a.OfferLetterApprovedAt = nil
		a.UpdatedAt = at
		result.OfferLetterCleared = true
	}
	if a.CreditsAwarded && !hasCompletion {
		if _, err := db.revokeCredits(studentID, rule.Credits, at); err != nil {
			return nil, result, err
		}
		result.CreditsRevoked = true
	}
	return copyApproval(a), result, nil
}
