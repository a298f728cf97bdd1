package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

func newStudent(t *testing.T, db *DB, uid string) *models.Student {
	t.Helper()
	s := &models.Student{UID: uid, Email: uid + "@college.edu", Class: models.ClassTYIT}
	require.NoError(t, db.CreateStudent(context.Background(), s))
	return s
}

func TestCreateStudent_Unique(t *testing.T) {
	db := New()
	newStudent(t, db, "u1")

	err := db.CreateStudent(context.Background(), &models.Student{UID: "u1", Email: "other@college.edu"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	err = db.CreateStudent(context.Background(), &models.Student{UID: "u2", Email: "u1@college.edu"})
	assert.ErrorIs(t, err, apperrors.ErrStudentExists)
}

func TestUpsertSubmission_OverwritesByKey(t *testing.T) {
	ctx := context.Background()
	db := New()
	s := newStudent(t, db, "u1")

	first := &models.Submission{StudentID: s.ID, AssignmentType: models.AssignmentOfferLetter, FileURL: "a", Status: models.SubmissionSubmitted}
	require.NoError(t, db.UpsertSubmission(ctx, first))
	feedback := "blurry"
	_, err := db.ReviewSubmission(ctx, s.ID, models.AssignmentOfferLetter, repositories.SubmissionReview{
		Status: models.SubmissionRejected, Feedback: &feedback, ReviewedAt: time.Now(),
	})
	require.NoError(t, err)

	second := &models.Submission{StudentID: s.ID, AssignmentType: models.AssignmentOfferLetter, FileURL: "b", Status: models.SubmissionSubmitted}
	require.NoError(t, db.UpsertSubmission(ctx, second))

	list, err := db.ListSubmissions(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].FileURL)
	assert.Equal(t, models.SubmissionSubmitted, list[0].Status)
	assert.Nil(t, list[0].Feedback)
	assert.Nil(t, list[0].ReviewedAt)
}

func TestAwardCredits_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	db := New()
	s := newStudent(t, db, "u1")
	require.NoError(t, db.UpsertSubmission(ctx, &models.Submission{
		StudentID: s.ID, AssignmentType: models.AssignmentCompletionLetter, FileURL: "c", Status: models.SubmissionSubmitted,
	}))

	_, err := db.AwardCredits(ctx, s.ID, models.AssignmentCompletionLetter, 2, time.Now())
	require.NoError(t, err)
	_, err = db.AwardCredits(ctx, s.ID, models.AssignmentCompletionLetter, 2, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyAwarded)

	student, err := db.GetStudentByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, student.TotalCredits)

	sub, err := db.GetSubmission(ctx, s.ID, models.AssignmentCompletionLetter)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, sub.Status)
}

func TestReviewSubmission_RefuseIfCredited(t *testing.T) {
	ctx := context.Background()
	db := New()
	s := newStudent(t, db, "u1")
	require.NoError(t, db.UpsertSubmission(ctx, &models.Submission{
		StudentID: s.ID, AssignmentType: models.AssignmentCompletionLetter, FileURL: "c", Status: models.SubmissionSubmitted,
	}))
	reject := repositories.SubmissionReview{Status: models.SubmissionRejected, ReviewedAt: time.Now(), RefuseIfCredited: true}

	_, err := db.AwardCredits(ctx, s.ID, models.AssignmentCompletionLetter, 2, time.Now())
	require.NoError(t, err)
	_, err = db.ReviewSubmission(ctx, s.ID, models.AssignmentCompletionLetter, reject)
	assert.ErrorIs(t, err, apperrors.ErrCreditsOutstanding)

	sub, err := db.GetSubmission(ctx, s.ID, models.AssignmentCompletionLetter)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, sub.Status)

	_, err = db.RevokeCredits(ctx, s.ID, 2, time.Now())
	require.NoError(t, err)
	sub, err = db.ReviewSubmission(ctx, s.ID, models.AssignmentCompletionLetter, reject)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionRejected, sub.Status)
}

func TestReconcileApproval(t *testing.T) {
	ctx := context.Background()
	db := New()
	s := newStudent(t, db, "u1")
	for _, a := range []models.AssignmentType{models.AssignmentOfferLetter, models.AssignmentCompletionLetter} {
		require.NoError(t, db.UpsertSubmission(ctx, &models.Submission{StudentID: s.ID, AssignmentType: a, FileURL: "x", Status: models.SubmissionSubmitted}))
	}
	_, err := db.ApproveOfferLetter(ctx, s.ID, models.AssignmentOfferLetter, time.Now())
	require.NoError(t, err)
	_, err = db.AwardCredits(ctx, s.ID, models.AssignmentCompletionLetter, 2, time.Now())
	require.NoError(t, err)

	rule := repositories.ReconcileRule{
		OfferLetter: models.AssignmentOfferLetter,
		Completion:  models.AssignmentCompletionLetter,
		Credits:     2,
	}
	rec, res, err := db.ReconcileApproval(ctx, s.ID, rule)
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.True(t, rec.OfferLetterApproved)

	require.NoError(t, db.DeleteSubmission(ctx, s.ID, models.AssignmentOfferLetter))
	require.NoError(t, db.DeleteSubmission(ctx, s.ID, models.AssignmentCompletionLetter))

	rec, res, err = db.ReconcileApproval(ctx, s.ID, rule)
	require.NoError(t, err)
	assert.True(t, res.OfferLetterCleared)
	assert.True(t, res.CreditsRevoked)
	assert.False(t, rec.OfferLetterApproved)
	assert.False(t, rec.CreditsAwarded)

	student, err := db.GetStudentByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, student.TotalCredits)
}

func TestTransitionApplication_OneAccepted(t *testing.T) {
	ctx := context.Background()
	db := New()
	s := newStudent(t, db, "u1")
	e1 := &models.PlacementEvent{Title: "A", Company: "A", IsOpen: true}
	e2 := &models.PlacementEvent{Title: "B", Company: "B", IsOpen: true}
	require.NoError(t, db.CreateEvent(ctx, e1))
	require.NoError(t, db.CreateEvent(ctx, e2))

	a1 := &models.Application{StudentID: s.ID, EventID: e1.ID, Status: models.ApplicationApplied}
	a2 := &models.Application{StudentID: s.ID, EventID: e2.ID, Status: models.ApplicationApplied}
	require.NoError(t, db.CreateApplication(ctx, a1))
	require.NoError(t, db.CreateApplication(ctx, a2))
	assert.ErrorIs(t, db.CreateApplication(ctx, &models.Application{StudentID: s.ID, EventID: e1.ID}), apperrors.ErrAlreadyApplied)

	placed, err := db.HasAcceptedApplication(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, placed)

	_, err = db.TransitionApplication(ctx, a1.ID, models.ApplicationApplied, models.ApplicationAccepted, nil, time.Now())
	require.NoError(t, err)
	placed, err = db.HasAcceptedApplication(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, placed)
	_, err = db.TransitionApplication(ctx, a2.ID, models.ApplicationApplied, models.ApplicationAccepted, nil, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotEligible)
	_, err = db.TransitionApplication(ctx, a1.ID, models.ApplicationApplied, models.ApplicationRejected, nil, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	db := New()
	s := newStudent(t, db, "u1")
	db.SetReadOnly(true)

	err := db.UpsertSubmission(ctx, &models.Submission{StudentID: s.ID, AssignmentType: models.AssignmentOfferLetter})
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	assert.ErrorIs(t, db.CreateNotification(ctx, &models.Notification{Title: "x"}), apperrors.ErrReadOnly)

	got, err := db.GetStudentByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.UID, got.UID)
}
