package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
)

// ApplicationTracker manages a student's applications to placement drives.
type ApplicationTracker struct {
	store repositories.Store
	feed  changefeed.Publisher
	log   zerolog.Logger
}

// NewApplicationTracker creates a new application tracker
func NewApplicationTracker(store repositories.Store, feed changefeed.Publisher, log zerolog.Logger) *ApplicationTracker {
	return &ApplicationTracker{
		store: store,
		feed:  feed,
		log:   log.With().Str("service", "application_tracker").Logger(),
	}
}

// Apply creates an application in status applied. It fails with
// ErrAlreadyApplied for a repeated (student, event) pair and with
// ErrAlreadyPlaced once the student holds an accepted application.
func (t *ApplicationTracker) Apply(ctx context.Context, p auth.Principal, studentID, eventID int64) (*models.Application, error) {
	if err := p.RequireStudent(studentID); err != nil {
		return nil, err
	}
	student, err := t.store.GetStudentByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	event, err := t.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	existing, err := t.store.ListApplicationsByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("error listing applications: %w", err)
	}
	for _, a := range existing {
		if a.EventID == eventID {
			return nil, apperrors.ErrAlreadyApplied
		}
	}
	placed, err := t.store.HasAcceptedApplication(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("error checking placement: %w", err)
	}
	if placed {
		return nil, apperrors.ErrAlreadyPlaced
	}

	if !event.VisibleTo(student.Class) {
		return nil, apperrors.ErrClassExcluded
	}
	if !event.AcceptsApplications(now()) {
		return nil, apperrors.ErrEventClosed
	}

	application := &models.Application{
		StudentID: studentID,
		EventID:   eventID,
		Status:    models.ApplicationApplied,
		AppliedAt: now(),
	}
	if err := t.store.CreateApplication(ctx, application); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating application: %w", err)
	}

	t.log.Info().
		Int64("applicationID", application.ID).
		Int64("studentID", studentID).
		Int64("eventID", eventID).
		Msg("Application submitted")
	t.emitApplication(ctx, application, changefeed.OpInsert, "")
	return application, nil
}

// Accept moves an applied application to accepted. Accepting an accepted
// application returns it unchanged.
func (t *ApplicationTracker) Accept(ctx context.Context, p auth.Principal, applicationID int64, notes *string) (*models.Application, error) {
	return t.decide(ctx, p, applicationID, models.ApplicationAccepted, notes)
}

// Reject moves an applied application to rejected. Rejecting a rejected
// application returns it unchanged.
func (t *ApplicationTracker) Reject(ctx context.Context, p auth.Principal, applicationID int64, notes *string) (*models.Application, error) {
	return t.decide(ctx, p, applicationID, models.ApplicationRejected, notes)
}

func (t *ApplicationTracker) decide(ctx context.Context, p auth.Principal, applicationID int64, to models.ApplicationStatus, notes *string) (*models.Application, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	application, err := t.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if application.Status == to {
		return application, nil
	}
	if application.Status.Final() {
		return nil, apperrors.ErrInvalidTransition
	}

	from := application.Status
	updated, err := t.store.TransitionApplication(ctx, applicationID, from, to, trimmedPtr(notes), now())
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			// Another admin got there first; the same decision is still a no-op.
			if current, getErr := t.store.GetApplication(ctx, applicationID); getErr == nil && current.Status == to {
				return current, nil
			}
		}
		return nil, err
	}

	t.log.Info().
		Int64("applicationID", applicationID).
		Int64("studentID", updated.StudentID).
		Str("from", string(from)).
		Str("to", string(to)).
		Int64("adminID", p.UserID).
		Msg("Application status changed")
	t.emitApplication(ctx, updated, changefeed.OpUpdate, string(from))
	return updated, nil
}

// Get returns an application to its owner or an admin.
func (t *ApplicationTracker) Get(ctx context.Context, p auth.Principal, applicationID int64) (*models.Application, error) {
	application, err := t.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !p.CanActFor(application.StudentID) {
		// Foreign applications are not disclosed.
		return nil, apperrors.ErrApplicationNotFound
	}
	return application, nil
}

// ListForStudent returns a student's applications, most recent first.
func (t *ApplicationTracker) ListForStudent(ctx context.Context, p auth.Principal, studentID int64) ([]*models.Application, error) {
	if err := p.RequireStudent(studentID); err != nil {
		return nil, err
	}
	return t.store.ListApplicationsByStudent(ctx, studentID)
}

// ListForEvent returns the applicants of a drive. Admin only.
func (t *ApplicationTracker) ListForEvent(ctx context.Context, p auth.Principal, eventID int64) ([]*models.Application, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if _, err := t.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return t.store.ListApplicationsByEvent(ctx, eventID)
}

// CheckOfferLetterAllowed fails unless p owns the application and it is accepted.
func (t *ApplicationTracker) CheckOfferLetterAllowed(ctx context.Context, p auth.Principal, applicationID int64) (*models.Application, error) {
	application, err := t.Get(ctx, p, applicationID)
	if err != nil {
		return nil, err
	}
	if application.Status != models.ApplicationAccepted {
		return nil, apperrors.ErrNotAccepted
	}
	return application, nil
}

// AttachOfferLetter stores the offer letter URL of an accepted application,
// replacing any earlier one.
func (t *ApplicationTracker) AttachOfferLetter(ctx context.Context, p auth.Principal, applicationID int64, fileURL string) (*models.Application, error) {
	if _, err := t.CheckOfferLetterAllowed(ctx, p, applicationID); err != nil {
		return nil, err
	}
	fileURL = strings.TrimSpace(fileURL)
	if fileURL == "" {
		return nil, apperrors.NewValidationError("file URL is required")
	}

	updated, err := t.store.SetOfferLetterURL(ctx, applicationID, fileURL, now())
	if err != nil {
		return nil, err
	}

	t.log.Info().Int64("applicationID", applicationID).Int64("studentID", updated.StudentID).Msg("Offer letter attached")
	t.emitApplication(ctx, updated, changefeed.OpUpdate, string(updated.Status))
	return updated, nil
}

// CheckRequirementAllowed fails unless p owns the application, the application
// is still live and the requirement belongs to its drive.
func (t *ApplicationTracker) CheckRequirementAllowed(ctx context.Context, p auth.Principal, applicationID, requirementID int64) (*models.Application, error) {
	application, err := t.Get(ctx, p, applicationID)
	if err != nil {
		return nil, err
	}
	if application.Status == models.ApplicationRejected {
		return nil, apperrors.ErrInvalidTransition
	}
	event, err := t.store.GetEvent(ctx, application.EventID)
	if err != nil {
		return nil, err
	}
	for _, req := range event.AdditionalRequirements {
		if req.ID == requirementID {
			return application, nil
		}
	}
	return nil, apperrors.ErrRequirementNotFound
}

// SubmitRequirement records an upload against one of the drive's additional
// requirements, overwriting any earlier one.
func (t *ApplicationTracker) SubmitRequirement(ctx context.Context, p auth.Principal, applicationID, requirementID int64, fileURL string) (*models.RequirementSubmission, error) {
	application, err := t.CheckRequirementAllowed(ctx, p, applicationID, requirementID)
	if err != nil {
		return nil, err
	}
	fileURL = strings.TrimSpace(fileURL)
	if fileURL == "" {
		return nil, apperrors.NewValidationError("file URL is required")
	}

	submission := &models.RequirementSubmission{
		ApplicationID: applicationID,
		RequirementID: requirementID,
		FileURL:       fileURL,
		Status:        models.SubmissionSubmitted,
		SubmittedAt:   now(),
	}
	if err := t.store.UpsertRequirementSubmission(ctx, submission); err != nil {
		return nil, fmt.Errorf("error saving requirement submission: %w", err)
	}

	t.log.Info().
		Int64("applicationID", applicationID).
		Int64("requirementID", requirementID).
		Msg("Requirement submission recorded")
	emit(ctx, t.feed, changefeed.Event{
		Table:     changefeed.TableRequirementSubmissions,
		Op:        changefeed.OpUpdate,
		Key:       fmt.Sprintf("%d/%d", applicationID, requirementID),
		StudentID: application.StudentID,
		EventID:   application.EventID,
		NewStatus: string(submission.Status),
	})
	return submission, nil
}

// ListRequirements returns the requirement submissions of an application.
func (t *ApplicationTracker) ListRequirements(ctx context.Context, p auth.Principal, applicationID int64) ([]*models.RequirementSubmission, error) {
	if _, err := t.Get(ctx, p, applicationID); err != nil {
		return nil, err
	}
	return t.store.ListRequirementSubmissions(ctx, applicationID)
}

// ReviewRequirement records an admin decision on a requirement submission.
func (t *ApplicationTracker) ReviewRequirement(ctx context.Context, p auth.Principal, applicationID, requirementID int64, decision Decision, feedback *string) (*models.RequirementSubmission, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	status, err := decision.Status()
	if err != nil {
		return nil, err
	}
	application, err := t.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	submission, err := t.store.ReviewRequirementSubmission(ctx, applicationID, requirementID, repositories.SubmissionReview{
		Status:     status,
		Feedback:   trimmedPtr(feedback),
		ReviewedAt: now(),
	})
	if err != nil {
		return nil, err
	}

	emit(ctx, t.feed, changefeed.Event{
		Table:     changefeed.TableRequirementSubmissions,
		Op:        changefeed.OpUpdate,
		Key:       fmt.Sprintf("%d/%d", applicationID, requirementID),
		StudentID: application.StudentID,
		EventID:   application.EventID,
		NewStatus: string(status),
	})
	return submission, nil
}

func (t *ApplicationTracker) emitApplication(ctx context.Context, a *models.Application, op changefeed.Op, oldStatus string) {
	emit(ctx, t.feed, changefeed.Event{
		Table:     changefeed.TableApplications,
		Op:        op,
		Key:       strconv.FormatInt(a.ID, 10),
		StudentID: a.StudentID,
		EventID:   a.EventID,
		OldStatus: oldStatus,
		NewStatus: string(a.Status),
	})
}
