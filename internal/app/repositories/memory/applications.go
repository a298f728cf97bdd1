package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

func copyApplication(a *models.Application) *models.Application {
	c := *a
	c.AdminNotes = cloneString(a.AdminNotes)
	c.OfferLetterURL = cloneString(a.OfferLetterURL)
	return &c
}

func copyRequirementSubmission(s *models.RequirementSubmission) *models.RequirementSubmission {
	c := *s
	c.Feedback = cloneString(s.Feedback)
	return &c
}

func (db *DB) CreateApplication(ctx context.Context, application *models.Application) error {
	if err := db.lockWrite(ctx); err != nil {
		return err
	}
	defer db.mu.Unlock()

	if _, ok := db.students[application.StudentID]; !ok {
		return apperrors.NewNotFoundError("student or event not found")
	}
	if _, ok := db.events[application.EventID]; !ok {
		return apperrors.NewNotFoundError("student or event not found")
	}
	for _, a := range db.applications {
		if a.StudentID == application.StudentID && a.EventID == application.EventID {
			return apperrors.ErrAlreadyApplied
		}
	}

	db.nextApplicationID++
	application.ID = db.nextApplicationID
	application.AppliedAt = stamp(application.AppliedAt)
	application.UpdatedAt = application.AppliedAt
	db.applications[application.ID] = copyApplication(application)
	return nil
}

func (db *DB) GetApplication(_ context.Context, id int64) (*models.Application, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if a, ok := db.applications[id]; ok {
		return copyApplication(a), nil
	}
	return nil, apperrors.ErrApplicationNotFound
}

func (db *DB) listApplications(match func(*models.Application) bool) []*models.Application {
	db.mu.RLock()
	defer db.mu.RUnlock()

	applications := []*models.Application{}
	for _, a := range db.applications {
		if match(a) {
			applications = append(applications, copyApplication(a))
		}
	}
	sort.Slice(applications, func(i, j int) bool {
		if !applications[i].AppliedAt.Equal(applications[j].AppliedAt) {
			return applications[i].AppliedAt.After(applications[j].AppliedAt)
		}
		return applications[i].ID > applications[j].ID
	})
	return applications
}

func (db *DB) ListApplicationsByStudent(_ context.Context, studentID int64) ([]*models.Application, error) {
	return db.listApplications(func(a *models.Application) bool { return a.StudentID == studentID }), nil
}

func (db *DB) ListApplicationsByEvent(_ context.Context, eventID int64) ([]*models.Application, error) {
	return db.listApplications(func(a *models.Application) bool { return a.EventID == eventID }), nil
}

func (db *DB) HasAcceptedApplication(_ context.Context, studentID int64) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.hasAccepted(studentID, 0), nil
}

// hasAccepted reports an accepted application of studentID other than exclude.
func (db *DB) hasAccepted(studentID, exclude int64) bool {
	for _, a := range db.applications {
		if a.StudentID == studentID && a.ID != exclude && a.Status == models.ApplicationAccepted {
			return true
		}
	}
	return false
}

func (db *DB) TransitionApplication(ctx context.Context, id int64, from, to models.ApplicationStatus, notes *string, at time.Time) (*models.Application, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	a, ok := db.applications[id]
	if !ok {
		return nil, apperrors.ErrApplicationNotFound
	}
	if a.Status != from {
		return nil, apperrors.ErrInvalidTransition
	}
	if to == models.ApplicationAccepted && db.hasAccepted(a.StudentID, a.ID) {
		return nil, apperrors.ErrAlreadyPlaced
	}
	a.Status = to
	a.UpdatedAt = stamp(at)
	if notes != nil {
		a.AdminNotes = cloneString(notes)
	}
	return copyApplication(a), nil
}

func (db *DB) SetOfferLetterURL(ctx context.Context, id int64, url string, at time.Time) (*models.Application, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	a, ok := db.applications[id]
	if !ok {
		return nil, apperrors.ErrApplicationNotFound
	}
	if a.Status != models.ApplicationAccepted {
		return nil, apperrors.ErrNotAccepted
	}
	a.OfferLetterURL = &url
	a.UpdatedAt = stamp(at)
	return copyApplication(a), nil
}

func (db *DB) UpsertRequirementSubmission(ctx context.Context, submission *models.RequirementSubmission) error {
	if err := db.lockWrite(ctx); err != nil {
		return err
	}
	defer db.mu.Unlock()

	a, ok := db.applications[submission.ApplicationID]
	if !ok {
		return apperrors.ErrApplicationNotFound
	}
	if !db.eventHasRequirement(a.EventID, submission.RequirementID) {
		return apperrors.ErrRequirementNotFound
	}
	submission.SubmittedAt = stamp(submission.SubmittedAt)
	submission.Feedback = nil
	key := requirementKey{submission.ApplicationID, submission.RequirementID}
	db.requirementSubmissions[key] = copyRequirementSubmission(submission)
	return nil
}

func (db *DB) eventHasRequirement(eventID, requirementID int64) bool {
	e, ok := db.events[eventID]
	if !ok {
		return false
	}
	for _, req := range e.AdditionalRequirements {
		if req.ID == requirementID {
			return true
		}
	}
	return false
}

func (db *DB) ListRequirementSubmissions(_ context.Context, applicationID int64) ([]*models.RequirementSubmission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	submissions := []*models.RequirementSubmission{}
	for key, s := range db.requirementSubmissions {
		if key.applicationID == applicationID {
			submissions = append(submissions, copyRequirementSubmission(s))
		}
	}
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].RequirementID < submissions[j].RequirementID })
	return submissions, nil
}

func (db *DB) ReviewRequirementSubmission(ctx context.Context, applicationID, requirementID int64, review repositories.SubmissionReview) (*models.RequirementSubmission, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	s, ok := db.requirementSubmissions[requirementKey{applicationID, requirementID}]
	if !ok {
		return nil, apperrors.ErrSubmissionNotFound
	}
	s.Status = review.Status
	if review.Feedback != nil {
		s.Feedback = cloneString(review.Feedback)
	}
	return copyRequirementSubmission(s), nil
}
