package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
)

// ApprovalGate owns the offer_letter_approved and credits_awarded flags and
// the unlock rule derived from them. Every read goes through reconcile, which
// turns a flag off when its backing submission no longer exists.
type ApprovalGate struct {
	store   repositories.Store
	catalog *models.AssignmentCatalog
	credits int
	feed    changefeed.Publisher
	log     zerolog.Logger
}

// NewApprovalGate creates a new approval gate
func NewApprovalGate(store repositories.Store, catalog *models.AssignmentCatalog, credits int, feed changefeed.Publisher, log zerolog.Logger) *ApprovalGate {
	return &ApprovalGate{
		store:   store,
		catalog: catalog,
		credits: credits,
		feed:    feed,
		log:     log.With().Str("service", "approval_gate").Logger(),
	}
}

func (g *ApprovalGate) rule() repositories.ReconcileRule {
	return repositories.ReconcileRule{
		OfferLetter: g.catalog.Unlocker(),
		Completion:  g.catalog.CreditBearing(),
		Credits:     g.credits,
		At:          now(),
	}
}

// reconcile returns the corrected approval state of studentID. A student with
// no record yet has both flags off.
func (g *ApprovalGate) reconcile(ctx context.Context, studentID int64) (*models.ApprovalRecord, error) {
	record, result, err := g.store.ReconcileApproval(ctx, studentID, g.rule())
	if err != nil {
		if errors.Is(err, apperrors.ErrApprovalNotFound) {
			return &models.ApprovalRecord{StudentID: studentID}, nil
		}
		return nil, err
	}

	if result.Changed() {
		g.log.Info().
			Int64("studentID", studentID).
			Bool("offerLetterCleared", result.OfferLetterCleared).
			Bool("creditsRevoked", result.CreditsRevoked).
			Msg("Approval flags reset, backing submission is gone")
		g.emitApproval(ctx, studentID)
		if result.CreditsRevoked {
			g.emitStudent(ctx, studentID)
		}
	}
	return record, nil
}

// State returns the reconciled approval state of a student.
func (g *ApprovalGate) State(ctx context.Context, p auth.Principal, studentID int64) (*models.ApprovalRecord, error) {
	if err := p.RequireStudent(studentID); err != nil {
		return nil, err
	}
	if _, err := g.store.GetStudentByID(ctx, studentID); err != nil {
		return nil, err
	}
	return g.reconcile(ctx, studentID)
}

// CheckUnlocked fails with ErrLockedAssignment when assignment requires an
// approved offer letter the student does not have.
func (g *ApprovalGate) CheckUnlocked(ctx context.Context, studentID int64, assignment models.AssignmentType) error {
	def, ok := g.catalog.Lookup(assignment)
	if !ok {
		return apperrors.ErrUnknownAssignment
	}
	if def.UnlocksOthers {
		return nil
	}

	record, err := g.reconcile(ctx, studentID)
	if err != nil {
		return err
	}
	if !record.OfferLetterApproved {
		return apperrors.ErrLockedAssignment
	}
	return nil
}

// ApproveOfferLetter approves the offer-letter submission and turns the unlock
// flag on in one write.
func (g *ApprovalGate) ApproveOfferLetter(ctx context.Context, p auth.Principal, studentID int64) (*models.ApprovalRecord, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}

	record, err := g.store.ApproveOfferLetter(ctx, studentID, g.catalog.Unlocker(), now())
	if err != nil {
		return nil, fmt.Errorf("error approving offer letter: %w", err)
	}

	g.log.Info().Int64("studentID", studentID).Int64("adminID", p.UserID).Msg("Offer letter approved")
	g.emitApproval(ctx, studentID)
	g.emitSubmission(ctx, studentID, g.catalog.Unlocker())
	return record, nil
}

// AwardCredits awards the internship credits exactly once. The flag, the
// credit total and the completion submission are written atomically.
func (g *ApprovalGate) AwardCredits(ctx context.Context, p auth.Principal, studentID int64) (*models.ApprovalRecord, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	// A stale flag whose completion letter was withdrawn must not block the award.
	if _, err := g.reconcile(ctx, studentID); err != nil {
		return nil, err
	}

	record, err := g.store.AwardCredits(ctx, studentID, g.catalog.CreditBearing(), g.credits, now())
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyAwarded) {
			g.log.Warn().Int64("studentID", studentID).Msg("Credit award repeated")
			return nil, err
		}
		return nil, fmt.Errorf("error awarding credits: %w", err)
	}

	g.log.Info().
		Int64("studentID", studentID).
		Int64("adminID", p.UserID).
		Int("credits", g.credits).
		Msg("Internship credits awarded")
	g.emitApproval(ctx, studentID)
	g.emitSubmission(ctx, studentID, g.catalog.CreditBearing())
	g.emitStudent(ctx, studentID)
	return record, nil
}

// RevokeCredits turns credits_awarded off and subtracts the awarded credits.
func (g *ApprovalGate) RevokeCredits(ctx context.Context, p auth.Principal, studentID int64) (*models.ApprovalRecord, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}

	record, err := g.store.RevokeCredits(ctx, studentID, g.credits, now())
	if err != nil {
		if errors.Is(err, apperrors.ErrCreditsNotAwarded) {
			return nil, err
		}
		return nil, fmt.Errorf("error revoking credits: %w", err)
	}

	g.log.Info().Int64("studentID", studentID).Int64("adminID", p.UserID).Msg("Internship credits revoked")
	g.emitApproval(ctx, studentID)
	g.emitStudent(ctx, studentID)
	return record, nil
}

// ReconcileAll applies the self-healing rule to every approval record and
// returns how many were corrected. It keeps going past individual failures.
func (g *ApprovalGate) ReconcileAll(ctx context.Context) (int, error) {
	records, err := g.store.ListApprovals(ctx)
	if err != nil {
		return 0, fmt.Errorf("error listing approvals: %w", err)
	}

	corrected := 0
	var errs []error
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return corrected, err
		}
		if !r.OfferLetterApproved && !r.CreditsAwarded {
			continue
		}
		_, result, err := g.store.ReconcileApproval(ctx, r.StudentID, g.rule())
		if err != nil {
			g.log.Error().Err(err).Int64("studentID", r.StudentID).Msg("Error reconciling approval")
			errs = append(errs, err)
			continue
		}
		if result.Changed() {
			corrected++
			g.emitApproval(ctx, r.StudentID)
			if result.CreditsRevoked {
				g.emitStudent(ctx, r.StudentID)
			}
		}
	}

	g.log.Info().Int("checked", len(records)).Int("corrected", corrected).Msg("Approval reconciliation finished")
	return corrected, errors.Join(errs...)
}

func (g *ApprovalGate) emitApproval(ctx context.Context, studentID int64) {
	emit(ctx, g.feed, changefeed.Event{
		Table:     changefeed.TableApprovals,
		Op:        changefeed.OpUpdate,
		Key:       strconv.FormatInt(studentID, 10),
		StudentID: studentID,
	})
}

func (g *ApprovalGate) emitSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType) {
	emit(ctx, g.feed, changefeed.Event{
		Table:     changefeed.TableSubmissions,
		Op:        changefeed.OpUpdate,
		Key:       submissionKey(studentID, assignment),
		StudentID: studentID,
		NewStatus: string(models.SubmissionApproved),
	})
}

func (g *ApprovalGate) emitStudent(ctx context.Context, studentID int64) {
	emit(ctx, g.feed, changefeed.Event{
		Table:     changefeed.TableStudents,
		Op:        changefeed.OpUpdate,
		Key:       strconv.FormatInt(studentID, 10),
		StudentID: studentID,
	})
}
