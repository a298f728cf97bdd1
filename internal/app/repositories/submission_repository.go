package repositories

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/db"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/dberrors"
	"github.com/yigit/placementdesk/internal/pkg/logger"
)

var submissionColumns = []string{
	"student_id", "assignment_type", "file_url", "status", "feedback", "submitted_at", "reviewed_at",
}

// SubmissionRepository handles database operations for assignment submissions
type SubmissionRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewSubmissionRepository creates a new SubmissionRepository
func NewSubmissionRepository(db *db.PostgresDB) *SubmissionRepository {
	return &SubmissionRepository{db: db, sb: newBuilder()}
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	s := &models.Submission{}
	var assignment, status string
	err := row.Scan(&s.StudentID, &assignment, &s.FileURL, &status, &s.Feedback, &s.SubmittedAt, &s.ReviewedAt)
	if err != nil {
		return nil, err
	}
	s.AssignmentType = models.AssignmentType(assignment)
	s.Status = models.SubmissionStatus(status)
	return s, nil
}

// UpsertSubmission writes the submission for its key and clears any previous review.
func (r *SubmissionRepository) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	sql, args, err := r.sb.Insert("submissions").
		Columns("student_id", "assignment_type", "file_url", "status", "submitted_at").
		Values(submission.StudentID, string(submission.AssignmentType), submission.FileURL,
			string(submission.Status), submission.SubmittedAt).
		Suffix(`ON CONFLICT (student_id, assignment_type) DO UPDATE SET
			file_url = EXCLUDED.file_url,
			status = EXCLUDED.status,
			submitted_at = EXCLUDED.submitted_at,
			feedback = NULL,
			reviewed_at = NULL`).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building upsert submission SQL")
		return dbError(err, "failed to build upsert submission query")
	}

	if _, err := r.db.Pool.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).
			Int64("studentID", submission.StudentID).
			Str("assignment", string(submission.AssignmentType)).
			Msg("Error executing upsert submission query")
		return dbError(err, "error upserting submission")
	}
	submission.Feedback = nil
	submission.ReviewedAt = nil
	return nil
}

// GetSubmission retrieves the submission for a key
func (r *SubmissionRepository) GetSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType) (*models.Submission, error) {
	return getSubmission(ctx, r.db.Pool, r.sb, studentID, assignment, false)
}

func getSubmission(ctx context.Context, q querier, sb squirrel.StatementBuilderType, studentID int64, assignment models.AssignmentType, forUpdate bool) (*models.Submission, error) {
	query := sb.Select(submissionColumns...).
		From("submissions").
		Where(squirrel.Eq{"student_id": studentID, "assignment_type": string(assignment)})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}
	sql, args, err := query.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get submission SQL")
		return nil, dbError(err, "failed to build get submission query")
	}

	submission, err := scanSubmission(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSubmissionNotFound
		}
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error scanning submission row")
		return nil, dbError(err, "error getting submission")
	}
	return submission, nil
}

// ListSubmissions returns the stored submissions of one student.
func (r *SubmissionRepository) ListSubmissions(ctx context.Context, studentID int64) ([]*models.Submission, error) {
	sql, args, err := r.sb.Select(submissionColumns...).
		From("submissions").
		Where(squirrel.Eq{"student_id": studentID}).
		OrderBy("submitted_at ASC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list submissions SQL")
		return nil, dbError(err, "failed to build list submissions query")
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing list submissions query")
		return nil, dbError(err, "error querying submissions")
	}
	defer rows.Close()

	submissions := []*models.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, dbError(err, "error scanning submission row")
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating submission rows")
	}
	return submissions, nil
}

// ReviewSubmission records an admin decision. With RefuseIfCredited the
// submission row is locked first, the same lock AwardCredits takes, so an award
// cannot commit between the credit check and the write.
func (r *SubmissionRepository) ReviewSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType, review SubmissionReview) (*models.Submission, error) {
	if !review.RefuseIfCredited {
		return setSubmissionStatus(ctx, r.db.Pool, r.sb, studentID, assignment, review)
	}

	var submission *models.Submission
	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := getSubmission(ctx, tx, r.sb, studentID, assignment, true); err != nil {
			return err
		}

		sql, args, err := r.sb.Select("credits_awarded").
			From("approvals").
			Where(squirrel.Eq{"student_id": studentID}).
			ToSql()
		if err != nil {
			return dbError(err, "failed to build credits check query")
		}
		var credited bool
		if err := tx.QueryRow(ctx, sql, args...).Scan(&credited); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return dbError(err, "error checking awarded credits")
		}
		if credited {
			return apperrors.ErrCreditsOutstanding
		}

		submission, err = setSubmissionStatus(ctx, tx, r.sb, studentID, assignment, review)
		return err
	})
	if err != nil {
		return nil, err
	}
	return submission, nil
}

func setSubmissionStatus(ctx context.Context, q querier, sb squirrel.StatementBuilderType, studentID int64, assignment models.AssignmentType, review SubmissionReview) (*models.Submission, error) {
	set := map[string]interface{}{
		"status":      string(review.Status),
		"reviewed_at": review.ReviewedAt,
	}
	if review.Feedback != nil {
		set["feedback"] = *review.Feedback
	}
	sql, args, err := sb.Update("submissions").
		SetMap(set).
		Where(squirrel.Eq{"student_id": studentID, "assignment_type": string(assignment)}).
		Suffix("RETURNING " + joinColumns(submissionColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building review submission SQL")
		return nil, dbError(err, "failed to build review submission query")
	}

	submission, err := scanSubmission(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSubmissionNotFound
		}
		logger.Error().Err(err).Int64("studentID", studentID).Str("assignment", string(assignment)).
			Msg("Error executing review submission query")
		return nil, dbError(err, "error reviewing submission")
	}
	return submission, nil
}

// DeleteSubmission removes the submission for a key
func (r *SubmissionRepository) DeleteSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType) error {
	sql, args, err := r.sb.Delete("submissions").
		Where(squirrel.Eq{"student_id": studentID, "assignment_type": string(assignment)}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete submission SQL")
		return dbError(err, "failed to build delete submission query")
	}

	cmdTag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing delete submission query")
		return dbError(err, "error deleting submission")
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrSubmissionNotFound
	}
	return nil
}
