package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
)

// AssignmentSlot is one catalog entry together with the student's submission
// for it, if any.
type AssignmentSlot struct {
	Definition models.AssignmentDefinition
	Submission *models.Submission // nil when not submitted
	Status     models.SubmissionStatus
	Locked     bool
}

// StudentAssignments is the full assignment view of one student.
type StudentAssignments struct {
	StudentID int64
	Slots     []AssignmentSlot
	Approval  *models.ApprovalRecord
}

// SubmissionLedger records uploads against the assignment catalog.
type SubmissionLedger struct {
	store   repositories.Store
	catalog *models.AssignmentCatalog
	gate    *ApprovalGate
	feed    changefeed.Publisher
	log     zerolog.Logger
}

// NewSubmissionLedger creates a new submission ledger
func NewSubmissionLedger(store repositories.Store, catalog *models.AssignmentCatalog, gate *ApprovalGate, feed changefeed.Publisher, log zerolog.Logger) *SubmissionLedger {
	return &SubmissionLedger{
		store:   store,
		catalog: catalog,
		gate:    gate,
		feed:    feed,
		log:     log.With().Str("service", "submission_ledger").Logger(),
	}
}

// Catalog returns the assignment catalog the ledger validates against.
func (l *SubmissionLedger) Catalog() *models.AssignmentCatalog {
	return l.catalog
}

// Submit records fileURL as the student's submission for assignment,
// overwriting any earlier one. Every type except the unlocking one requires an
// approved offer letter.
func (l *SubmissionLedger) Submit(ctx context.Context, p auth.Principal, studentID int64, assignment models.AssignmentType, fileURL string) (*models.Submission, error) {
	if err := p.RequireStudent(studentID); err != nil {
		return nil, err
	}
	if _, ok := l.catalog.Lookup(assignment); !ok {
		return nil, apperrors.ErrUnknownAssignment
	}
	fileURL = strings.TrimSpace(fileURL)
	if fileURL == "" {
		return nil, apperrors.NewValidationError("file URL is required")
	}
	if _, err := l.store.GetStudentByID(ctx, studentID); err != nil {
		return nil, err
	}
	if err := l.gate.CheckUnlocked(ctx, studentID, assignment); err != nil {
		return nil, err
	}

	op := changefeed.OpInsert
	var oldStatus string
	previous, err := l.store.GetSubmission(ctx, studentID, assignment)
	switch {
	case err == nil:
		op = changefeed.OpUpdate
		oldStatus = string(previous.Status)
	case !errors.Is(err, apperrors.ErrSubmissionNotFound):
		return nil, err
	}

	submission := &models.Submission{
		StudentID:      studentID,
		AssignmentType: assignment,
		FileURL:        fileURL,
		Status:         models.SubmissionSubmitted,
		SubmittedAt:    now(),
	}
	if err := l.store.UpsertSubmission(ctx, submission); err != nil {
		return nil, fmt.Errorf("error saving submission: %w", err)
	}

	l.log.Info().
		Int64("studentID", studentID).
		Str("assignment", string(assignment)).
		Str("op", string(op)).
		Msg("Submission recorded")
	emit(ctx, l.feed, changefeed.Event{
		Table:     changefeed.TableSubmissions,
		Op:        op,
		Key:       submissionKey(studentID, assignment),
		StudentID: studentID,
		OldStatus: oldStatus,
		NewStatus: string(submission.Status),
	})
	return submission, nil
}

// Review records an admin decision on a submission. Rejecting the
// credit-bearing submission while its credits stand is refused.
func (l *SubmissionLedger) Review(ctx context.Context, p auth.Principal, studentID int64, assignment models.AssignmentType, decision Decision, feedback *string) (*models.Submission, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if _, ok := l.catalog.Lookup(assignment); !ok {
		return nil, apperrors.ErrUnknownAssignment
	}
	status, err := decision.Status()
	if err != nil {
		return nil, err
	}

	previous, err := l.store.GetSubmission(ctx, studentID, assignment)
	if err != nil {
		return nil, err
	}

	refuseIfCredited := status == models.SubmissionRejected && assignment == l.catalog.CreditBearing()
	if refuseIfCredited {
		// clear a stale flag before the store checks it
		if _, err := l.gate.reconcile(ctx, studentID); err != nil {
			return nil, err
		}
	}

	submission, err := l.store.ReviewSubmission(ctx, studentID, assignment, repositories.SubmissionReview{
		Status:           status,
		Feedback:         trimmedPtr(feedback),
		ReviewedAt:       now(),
		RefuseIfCredited: refuseIfCredited,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrCreditsOutstanding) {
			return nil, err
		}
		return nil, fmt.Errorf("error reviewing submission: %w", err)
	}

	l.log.Info().
		Int64("studentID", studentID).
		Str("assignment", string(assignment)).
		Str("status", string(status)).
		Int64("adminID", p.UserID).
		Msg("Submission reviewed")
	emit(ctx, l.feed, changefeed.Event{
		Table:     changefeed.TableSubmissions,
		Op:        changefeed.OpUpdate,
		Key:       submissionKey(studentID, assignment),
		StudentID: studentID,
		OldStatus: string(previous.Status),
		NewStatus: string(status),
	})
	return submission, nil
}

// Get returns the student's submission for assignment, or ErrSubmissionNotFound.
func (l *SubmissionLedger) Get(ctx context.Context, p auth.Principal, studentID int64, assignment models.AssignmentType) (*models.Submission, error) {
	if err := p.RequireStudent(studentID); err != nil {
		return nil, err
	}
	if _, ok := l.catalog.Lookup(assignment); !ok {
		return nil, apperrors.ErrUnknownAssignment
	}
	return l.store.GetSubmission(ctx, studentID, assignment)
}

// ListForStudent returns one slot per catalog entry, in catalog order. Types
// without a submission are reported as not submitted.
func (l *SubmissionLedger) ListForStudent(ctx context.Context, p auth.Principal, studentID int64) (*StudentAssignments, error) {
	if err := p.RequireStudent(studentID); err != nil {
		return nil, err
	}
	if _, err := l.store.GetStudentByID(ctx, studentID); err != nil {
		return nil, err
	}

	record, err := l.gate.reconcile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	submissions, err := l.store.ListSubmissions(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("error listing submissions: %w", err)
	}
	byType := make(map[models.AssignmentType]*models.Submission, len(submissions))
	for _, s := range submissions {
		byType[s.AssignmentType] = s
	}

	defs := l.catalog.All()
	slots := make([]AssignmentSlot, 0, len(defs))
	for _, def := range defs {
		slot := AssignmentSlot{
			Definition: def,
			Status:     models.SubmissionNotSubmitted,
			Locked:     !def.UnlocksOthers && !record.OfferLetterApproved,
		}
		if s, ok := byType[def.Type]; ok {
			slot.Submission = s
			slot.Status = s.Status
		}
		slots = append(slots, slot)
	}

	return &StudentAssignments{StudentID: studentID, Slots: slots, Approval: record}, nil
}

// Withdraw deletes a submission. Students may withdraw only their own
// submissions that are not approved; admins may withdraw any. The approval
// flags are reconciled straight away.
func (l *SubmissionLedger) Withdraw(ctx context.Context, p auth.Principal, studentID int64, assignment models.AssignmentType) (*models.Submission, error) {
	if err := p.RequireStudent(studentID); err != nil {
		return nil, err
	}
	if _, ok := l.catalog.Lookup(assignment); !ok {
		return nil, apperrors.ErrUnknownAssignment
	}

	existing, err := l.store.GetSubmission(ctx, studentID, assignment)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.SubmissionApproved && !p.IsAdmin() {
		return nil, apperrors.ErrSubmissionFinal
	}

	if err := l.store.DeleteSubmission(ctx, studentID, assignment); err != nil {
		return nil, fmt.Errorf("error deleting submission: %w", err)
	}

	l.log.Info().
		Int64("studentID", studentID).
		Str("assignment", string(assignment)).
		Int64("userID", p.UserID).
		Msg("Submission withdrawn")
	emit(ctx, l.feed, changefeed.Event{
		Table:     changefeed.TableSubmissions,
		Op:        changefeed.OpDelete,
		Key:       submissionKey(studentID, assignment),
		StudentID: studentID,
		OldStatus: string(existing.Status),
	})

	if _, err := l.gate.reconcile(ctx, studentID); err != nil {
		l.log.Error().Err(err).Int64("studentID", studentID).Msg("Error reconciling approval after withdrawal")
	}
	return existing, nil
}
