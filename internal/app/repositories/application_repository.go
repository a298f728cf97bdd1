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
	"github.com/yigit/placementdesk/internal/pkg/dberrors"
	"github.com/yigit/placementdesk/internal/pkg/logger"
)

var applicationColumns = []string{
	"id", "student_id", "event_id", "status", "applied_at", "admin_notes", "offer_letter_url", "updated_at",
}

var requirementSubmissionColumns = []string{
	"application_id", "requirement_id", "file_url", "status", "feedback", "submitted_at",
}

// ApplicationRepository handles database operations for applications
type ApplicationRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(db *db.PostgresDB) *ApplicationRepository {
	return &ApplicationRepository{db: db, sb: newBuilder()}
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	a := &models.Application{}
	var status string
	err := row.Scan(&a.ID, &a.StudentID, &a.EventID, &status, &a.AppliedAt, &a.AdminNotes,
		&a.OfferLetterURL, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = models.ApplicationStatus(status)
	return a, nil
}

func scanRequirementSubmission(row pgx.Row) (*models.RequirementSubmission, error) {
	s := &models.RequirementSubmission{}
	var status string
	if err := row.Scan(&s.ApplicationID, &s.RequirementID, &s.FileURL, &status, &s.Feedback, &s.SubmittedAt); err != nil {
		return nil, err
	}
	s.Status = models.SubmissionStatus(status)
	return s, nil
}

// CreateApplication inserts an application. The unique (student_id, event_id)
// constraint is the guard against double applies.
func (r *ApplicationRepository) CreateApplication(ctx context.Context, application *models.Application) error {
	sql, args, err := r.sb.Insert("applications").
		Columns("student_id", "event_id", "status", "applied_at", "updated_at").
		Values(application.StudentID, application.EventID, string(application.Status),
			application.AppliedAt, application.AppliedAt).
		Suffix("RETURNING id, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create application SQL")
		return dbError(err, "failed to build create application query")
	}

	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&application.ID, &application.UpdatedAt); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "applications_student_event_key") {
			return apperrors.ErrAlreadyApplied
		}
		if dberrors.IsForeignKeyError(err) {
			return apperrors.NewNotFoundError("student or event not found")
		}
		logger.Error().Err(err).
			Int64("studentID", application.StudentID).
			Int64("eventID", application.EventID).
			Msg("Error executing create application query")
		return dbError(err, "error creating application")
	}
	return nil
}

// GetApplication retrieves an application by ID
func (r *ApplicationRepository) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	sql, args, err := r.sb.Select(applicationColumns...).
		From("applications").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get application SQL")
		return nil, dbError(err, "failed to build get application query")
	}

	application, err := scanApplication(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrApplicationNotFound
		}
		logger.Error().Err(err).Int64("applicationID", id).Msg("Error scanning application row")
		return nil, dbError(err, "error getting application")
	}
	return application, nil
}

func (r *ApplicationRepository) listApplications(ctx context.Context, where squirrel.Eq) ([]*models.Application, error) {
	sql, args, err := r.sb.Select(applicationColumns...).
		From("applications").
		Where(where).
		OrderBy("applied_at DESC", "id DESC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list applications SQL")
		return nil, dbError(err, "failed to build list applications query")
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list applications query")
		return nil, dbError(err, "error querying applications")
	}
	defer rows.Close()

	applications := []*models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, dbError(err, "error scanning application row")
		}
		applications = append(applications, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating application rows")
	}
	return applications, nil
}

// ListApplicationsByStudent returns a student's applications, newest first
func (r *ApplicationRepository) ListApplicationsByStudent(ctx context.Context, studentID int64) ([]*models.Application, error) {
	return r.listApplications(ctx, squirrel.Eq{"student_id": studentID})
}

// ListApplicationsByEvent returns the applicants of an event, newest first
func (r *ApplicationRepository) ListApplicationsByEvent(ctx context.Context, eventID int64) ([]*models.Application, error) {
	return r.listApplications(ctx, squirrel.Eq{"event_id": eventID})
}

// HasAcceptedApplication reports whether the student is already placed.
func (r *ApplicationRepository) HasAcceptedApplication(ctx context.Context, studentID int64) (bool, error) {
	sql, args, err := r.sb.Select("1").
		From("applications").
		Where(squirrel.Eq{"student_id": studentID, "status": string(models.ApplicationAccepted)}).
		Prefix("SELECT EXISTS (").Suffix(")").
		ToSql()
	if err != nil {
		return false, dbError(err, "failed to build accepted application query")
	}

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error checking accepted application")
		return false, dbError(err, "error checking accepted application")
	}
	return exists, nil
}

// TransitionApplication updates the status only when it still equals from.
// The partial unique index on accepted applications rejects a second placement.
func (r *ApplicationRepository) TransitionApplication(ctx context.Context, id int64, from, to models.ApplicationStatus, notes *string, at time.Time) (*models.Application, error) {
	set := map[string]interface{}{
		"status":     string(to),
		"updated_at": at,
	}
	if notes != nil {
		set["admin_notes"] = *notes
	}
	sql, args, err := r.sb.Update("applications").
		SetMap(set).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		Suffix("RETURNING " + joinColumns(applicationColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building transition application SQL")
		return nil, dbError(err, "failed to build transition application query")
	}

	application, err := scanApplication(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetApplication(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, apperrors.ErrInvalidTransition
		}
		if dberrors.IsDuplicateConstraintError(err, "applications_one_accepted_idx") {
			return nil, apperrors.ErrAlreadyPlaced
		}
		logger.Error().Err(err).Int64("applicationID", id).Msg("Error executing transition application query")
		return nil, dbError(err, "error updating application status")
	}
	return application, nil
}

// SetOfferLetterURL stores the offer-letter reference of an accepted application
func (r *ApplicationRepository) SetOfferLetterURL(ctx context.Context, id int64, url string, at time.Time) (*models.Application, error) {
	sql, args, err := r.sb.Update("applications").
		Set("offer_letter_url", url).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "status": string(models.ApplicationAccepted)}).
		Suffix("RETURNING " + joinColumns(applicationColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building set offer letter SQL")
		return nil, dbError(err, "failed to build set offer letter query")
	}

	application, err := scanApplication(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetApplication(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, apperrors.ErrNotAccepted
		}
		logger.Error().Err(err).Int64("applicationID", id).Msg("Error executing set offer letter query")
		return nil, dbError(err, "error setting offer letter")
	}
	return application, nil
}

// UpsertRequirementSubmission writes the upload for (application, requirement)
func (r *ApplicationRepository) UpsertRequirementSubmission(ctx context.Context, submission *models.RequirementSubmission) error {
	sql, args, err := r.sb.Insert("requirement_submissions").
		Columns("application_id", "requirement_id", "file_url", "status", "submitted_at").
		Values(submission.ApplicationID, submission.RequirementID, submission.FileURL,
			string(submission.Status), submission.SubmittedAt).
		Suffix(`ON CONFLICT (application_id, requirement_id) DO UPDATE SET
			file_url = EXCLUDED.file_url,
			status = EXCLUDED.status,
			submitted_at = EXCLUDED.submitted_at,
			feedback = NULL`).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building upsert requirement submission SQL")
		return dbError(err, "failed to build upsert requirement submission query")
	}

	if _, err := r.db.Pool.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsForeignKeyError(err) {
			return apperrors.ErrRequirementNotFound
		}
		logger.Error().Err(err).Int64("applicationID", submission.ApplicationID).
			Msg("Error executing upsert requirement submission query")
		return dbError(err, "error upserting requirement submission")
	}
	submission.Feedback = nil
	return nil
}

// ListRequirementSubmissions returns the uploads of one application
func (r *ApplicationRepository) ListRequirementSubmissions(ctx context.Context, applicationID int64) ([]*models.RequirementSubmission, error) {
	sql, args, err := r.sb.Select(requirementSubmissionColumns...).
		From("requirement_submissions").
		Where(squirrel.Eq{"application_id": applicationID}).
		OrderBy("requirement_id ASC").
		ToSql()
	if err != nil {
		return nil, dbError(err, "failed to build list requirement submissions query")
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("applicationID", applicationID).Msg("Error executing list requirement submissions query")
		return nil, dbError(err, "error querying requirement submissions")
	}
	defer rows.Close()

	submissions := []*models.RequirementSubmission{}
	for rows.Next() {
		s, err := scanRequirementSubmission(rows)
		if err != nil {
			return nil, dbError(err, "error scanning requirement submission row")
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating requirement submission rows")
	}
	return submissions, nil
}

// ReviewRequirementSubmission records an admin decision on a requirement upload
func (r *ApplicationRepository) ReviewRequirementSubmission(ctx context.Context, applicationID, requirementID int64, review SubmissionReview) (*models.RequirementSubmission, error) {
	set := map[string]interface{}{"status": string(review.Status)}
	if review.Feedback != nil {
		set["feedback"] = *review.Feedback
	}
	sql, args, err := r.sb.Update("requirement_submissions").
		SetMap(set).
		Where(squirrel.Eq{"application_id": applicationID, "requirement_id": requirementID}).
		Suffix("RETURNING " + joinColumns(requirementSubmissionColumns)).
		ToSql()
	if err != nil {
		return nil, dbError(err, "failed to build review requirement submission query")
	}

	submission, err := scanRequirementSubmission(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSubmissionNotFound
		}
		logger.Error().Err(err).Int64("applicationID", applicationID).Msg("Error executing review requirement submission query")
		return nil, dbError(err, "error reviewing requirement submission")
	}
	return submission, nil
}
