package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/db"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/logger"
)

var approvalColumns = []string{
	"student_id", "offer_letter_approved", "offer_letter_approved_at",
	"credits_awarded", "credits_awarded_at", "updated_at",
}

// ApprovalRepository handles the approvals table and the multi-row writes that
// go with each flag change.
type ApprovalRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewApprovalRepository creates a new ApprovalRepository
func NewApprovalRepository(db *db.PostgresDB) *ApprovalRepository {
	return &ApprovalRepository{db: db, sb: newBuilder()}
}

func scanApproval(row pgx.Row) (*models.ApprovalRecord, error) {
	a := &models.ApprovalRecord{}
	err := row.Scan(&a.StudentID, &a.OfferLetterApproved, &a.OfferLetterApprovedAt,
		&a.CreditsAwarded, &a.CreditsAwardedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetApproval retrieves the approval record of a student
func (r *ApprovalRepository) GetApproval(ctx context.Context, studentID int64) (*models.ApprovalRecord, error) {
	return r.getApproval(ctx, r.db.Pool, studentID, false)
}

func (r *ApprovalRepository) getApproval(ctx context.Context, q querier, studentID int64, forUpdate bool) (*models.ApprovalRecord, error) {
	query := r.sb.Select(approvalColumns...).
		From("approvals").
		Where(squirrel.Eq{"student_id": studentID})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}
	sql, args, err := query.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get approval SQL")
		return nil, dbError(err, "failed to build get approval query")
	}

	approval, err := scanApproval(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrApprovalNotFound
		}
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error scanning approval row")
		return nil, dbError(err, "error getting approval")
	}
	return approval, nil
}

// ListApprovals returns every approval record
func (r *ApprovalRepository) ListApprovals(ctx context.Context) ([]*models.ApprovalRecord, error) {
	sql, args, err := r.sb.Select(approvalColumns...).
		From("approvals").
		OrderBy("student_id ASC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list approvals SQL")
		return nil, dbError(err, "failed to build list approvals query")
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list approvals query")
		return nil, dbError(err, "error querying approvals")
	}
	defer rows.Close()

	approvals := []*models.ApprovalRecord{}
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, dbError(err, "error scanning approval row")
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating approval rows")
	}
	return approvals, nil
}

// ApproveOfferLetter approves the offer-letter submission and sets the flag.
func (r *ApprovalRepository) ApproveOfferLetter(ctx context.Context, studentID int64, offerLetter models.AssignmentType, at time.Time) (*models.ApprovalRecord, error) {
	var record *models.ApprovalRecord
	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := setSubmissionStatus(ctx, tx, r.sb, studentID, offerLetter, SubmissionReview{
			Status:     models.SubmissionApproved,
			ReviewedAt: at,
		}); err != nil {
			return err
		}

		sql, args, err := r.sb.Insert("approvals").
			Columns("student_id", "offer_letter_approved", "offer_letter_approved_at", "updated_at").
			Values(studentID, true, at, at).
			Suffix(`ON CONFLICT (student_id) DO UPDATE SET
				offer_letter_approved = TRUE,
				offer_letter_approved_at = EXCLUDED.offer_letter_approved_at,
				updated_at = EXCLUDED.updated_at
				RETURNING ` + joinColumns(approvalColumns)).
			ToSql()
		if err != nil {
			return dbError(err, "failed to build approve offer letter query")
		}
		record, err = scanApproval(tx.QueryRow(ctx, sql, args...))
		if err != nil {
			return dbError(err, "error approving offer letter")
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error approving offer letter")
		return nil, err
	}
	return record, nil
}

// AwardCredits flips credits_awarded with a conditional upsert so that two
// concurrent awards increment the student's total once.
func (r *ApprovalRepository) AwardCredits(ctx context.Context, studentID int64, completion models.AssignmentType, credits int, at time.Time) (*models.ApprovalRecord, error) {
	var record *models.ApprovalRecord
	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := getSubmission(ctx, tx, r.sb, studentID, completion, true); err != nil {
			return err
		}

		sql, args, err := r.sb.Insert("approvals").
			Columns("student_id", "credits_awarded", "credits_awarded_at", "updated_at").
			Values(studentID, true, at, at).
			Suffix(`ON CONFLICT (student_id) DO UPDATE SET
				credits_awarded = TRUE,
				credits_awarded_at = EXCLUDED.credits_awarded_at,
				updated_at = EXCLUDED.updated_at
				WHERE approvals.credits_awarded = FALSE
				RETURNING ` + joinColumns(approvalColumns)).
			ToSql()
		if err != nil {
			return dbError(err, "failed to build award credits query")
		}
		record, err = scanApproval(tx.QueryRow(ctx, sql, args...))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrAlreadyAwarded
			}
			return dbError(err, "error awarding credits")
		}

		if err := adjustCredits(ctx, tx, r.sb, studentID, credits); err != nil {
			return err
		}

		_, err = setSubmissionStatus(ctx, tx, r.sb, studentID, completion, SubmissionReview{
			Status:     models.SubmissionApproved,
			ReviewedAt: at,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrAlreadyAwarded) {
			logger.Error().Err(err).Int64("studentID", studentID).Msg("Error awarding credits")
		}
		return nil, err
	}
	return record, nil
}

// RevokeCredits reverses an award. It is a conditional update so that the
// decrement happens once.
func (r *ApprovalRepository) RevokeCredits(ctx context.Context, studentID int64, credits int, at time.Time) (*models.ApprovalRecord, error) {
	var record *models.ApprovalRecord
	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		record, err = r.revokeCredits(ctx, tx, studentID, credits, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *ApprovalRepository) revokeCredits(ctx context.Context, tx pgx.Tx, studentID int64, credits int, at time.Time) (*models.ApprovalRecord, error) {
	sql, args, err := r.sb.Update("approvals").
		Set("credits_awarded", false).
		Set("credits_awarded_at", nil).
		Set("updated_at", at).
		Where(squirrel.Eq{"student_id": studentID, "credits_awarded": true}).
		Suffix("RETURNING " + joinColumns(approvalColumns)).
		ToSql()
	if err != nil {
		return nil, dbError(err, "failed to build revoke credits query")
	}
	record, err := scanApproval(tx.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCreditsNotAwarded
		}
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error revoking credits")
		return nil, dbError(err, "error revoking credits")
	}
	if err := adjustCredits(ctx, tx, r.sb, studentID, -credits); err != nil {
		return nil, err
	}
	return record, nil
}

// ReconcileApproval turns off any flag whose backing submission is gone.
func (r *ApprovalRepository) ReconcileApproval(ctx context.Context, studentID int64, rule ReconcileRule) (*models.ApprovalRecord, ReconcileResult, error) {
	var (
		record *models.ApprovalRecord
		result ReconcileResult
	)
	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		record, err = r.getApproval(ctx, tx, studentID, true)
		if err != nil {
			return err
		}

		if record.OfferLetterApproved {
			exists, err := submissionExists(ctx, tx, r.sb, studentID, rule.OfferLetter)
			if err != nil {
				return err
			}
			if !exists {
				sql, args, err := r.sb.Update("approvals").
					Set("offer_letter_approved", false).
					Set("offer_letter_approved_at", nil).
					Set("updated_at", rule.At).
					Where(squirrel.Eq{"student_id": studentID}).
					Suffix("RETURNING " + joinColumns(approvalColumns)).
					ToSql()
				if err != nil {
					return dbError(err, "failed to build clear offer letter query")
				}
				if record, err = scanApproval(tx.QueryRow(ctx, sql, args...)); err != nil {
					return dbError(err, "error clearing offer letter approval")
				}
				result.OfferLetterCleared = true
			}
		}

		if record.CreditsAwarded {
			exists, err := submissionExists(ctx, tx, r.sb, studentID, rule.Completion)
			if err != nil {
				return err
			}
			if !exists {
				if record, err = r.revokeCredits(ctx, tx, studentID, rule.Credits, rule.At); err != nil {
					return err
				}
				result.CreditsRevoked = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, ReconcileResult{}, err
	}
	return record, result, nil
}

func submissionExists(ctx context.Context, q querier, sb squirrel.StatementBuilderType, studentID int64, assignment models.AssignmentType) (bool, error) {
	sql, args, err := sb.Select("1").
		From("submissions").
		Where(squirrel.Eq{"student_id": studentID, "assignment_type": string(assignment)}).
		Prefix("SELECT EXISTS (").Suffix(")").
		ToSql()
	if err != nil {
		return false, dbError(err, "failed to build submission exists query")
	}
	var exists bool
	if err := q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, dbError(err, "error checking submission existence")
	}
	return exists, nil
}

// adjustCredits adds delta to the student's total in SQL, never below zero.
func adjustCredits(ctx context.Context, q querier, sb squirrel.StatementBuilderType, studentID int64, delta int) error {
	sql, args, err := sb.Update("students").
		Set("total_credits", squirrel.Expr("GREATEST(total_credits + ?, 0)", delta)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": studentID}).
		ToSql()
	if err != nil {
		return dbError(err, "failed to build adjust credits query")
	}
	cmdTag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return dbError(err, "error adjusting student credits")
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}
