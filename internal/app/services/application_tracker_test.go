package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
)

func TestApplicationTracker_ApplyTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)
	e := f.event(t, "Acme")

	a, err := f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApplied, a.Status)

	_, err = f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyApplied)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	list, err := f.svc.Tracker.ListForStudent(ctx, s, s.StudentID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestApplicationTracker_AcceptedBlocksFurtherApplications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)
	e1 := f.event(t, "Acme")
	e2 := f.event(t, "Globex")

	a, err := f.svc.Tracker.Apply(ctx, s, s.StudentID, e1.ID)
	require.NoError(t, err)
	accepted, err := f.svc.Tracker.Accept(ctx, f.admin, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, accepted.Status)

	_, err = f.svc.Tracker.Apply(ctx, s, s.StudentID, e2.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotEligible)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyPlaced)

	// a repeated pair still reports the duplicate first
	_, err = f.svc.Tracker.Apply(ctx, s, s.StudentID, e1.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyApplied)
}

func TestApplicationTracker_AcceptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)
	e := f.event(t, "Acme")
	a, err := f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	require.NoError(t, err)

	notes := "strong interview"
	first, err := f.svc.Tracker.Accept(ctx, f.admin, a.ID, &notes)
	require.NoError(t, err)
	second, err := f.svc.Tracker.Accept(ctx, f.admin, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, f.feed.find(changefeed.TableApplications, changefeed.OpUpdate), 1)

	_, err = f.svc.Tracker.Reject(ctx, f.admin, a.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestApplicationTracker_RejectThenAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)
	e := f.event(t, "Acme")
	a, err := f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	require.NoError(t, err)

	_, err = f.svc.Tracker.Reject(ctx, f.admin, a.ID, nil)
	require.NoError(t, err)
	again, err := f.svc.Tracker.Reject(ctx, f.admin, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, again.Status)

	_, err = f.svc.Tracker.Accept(ctx, f.admin, a.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = f.svc.Tracker.Accept(ctx, s, a.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestApplicationTracker_Eligibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sy := f.register(t, "asha", models.ClassSYIT)
	ty := f.register(t, "ravi", models.ClassTYCS)
	open := f.event(t, "Acme")
	tyOnly := f.event(t, "Globex", models.ClassTYIT, models.ClassTYCS)

	visible, err := f.svc.Events.List(ctx, sy)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, open.ID, visible[0].ID)

	visible, err = f.svc.Events.List(ctx, ty)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	_, err = f.svc.Events.Get(ctx, sy, tyOnly.ID)
	assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
	_, err = f.svc.Tracker.Apply(ctx, sy, sy.StudentID, tyOnly.ID)
	assert.ErrorIs(t, err, apperrors.ErrClassExcluded)
}

func TestApplicationTracker_ClosedEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)
	e := f.event(t, "Acme")

	_, err := f.svc.Events.SetOpen(ctx, f.admin, e.ID, false)
	require.NoError(t, err)
	_, err = f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	assert.ErrorIs(t, err, apperrors.ErrEventClosed)

	past := time.Now().Add(-time.Hour)
	expired := &models.PlacementEvent{Title: "Late", Company: "Initech", IsOpen: true, Deadline: &past}
	require.NoError(t, f.store.CreateEvent(ctx, expired))
	_, err = f.svc.Tracker.Apply(ctx, s, s.StudentID, expired.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotEligible)
}

func TestApplicationTracker_OfferLetter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)
	other := f.register(t, "ravi", models.ClassTYIT)
	e := f.event(t, "Acme")
	a, err := f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	require.NoError(t, err)

	_, err = f.svc.Tracker.AttachOfferLetter(ctx, s, a.ID, "https://files.test/offer.pdf")
	assert.ErrorIs(t, err, apperrors.ErrNotAccepted)

	_, err = f.svc.Tracker.Accept(ctx, f.admin, a.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Tracker.AttachOfferLetter(ctx, other, a.ID, "https://files.test/offer.pdf")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Tracker.AttachOfferLetter(ctx, s, a.ID, "https://files.test/offer.pdf")
	require.NoError(t, err)
	updated, err := f.svc.Tracker.AttachOfferLetter(ctx, s, a.ID, "https://files.test/offer-v2.pdf")
	require.NoError(t, err)
	require.NotNil(t, updated.OfferLetterURL)
	assert.Equal(t, "https://files.test/offer-v2.pdf", *updated.OfferLetterURL)
}

func TestApplicationTracker_Requirements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)
	e, err := f.svc.Events.Create(ctx, f.admin, &models.PlacementEvent{
		Title: "SDE", Company: "Acme", IsOpen: true,
		AdditionalRequirements: []models.PlacementRequirement{{RequirementType: "Resume", Required: true}},
	})
	require.NoError(t, err)
	require.Len(t, e.AdditionalRequirements, 1)
	reqID := e.AdditionalRequirements[0].ID

	a, err := f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	require.NoError(t, err)

	_, err = f.svc.Tracker.SubmitRequirement(ctx, s, a.ID, reqID+100, "https://files.test/r.pdf")
	assert.ErrorIs(t, err, apperrors.ErrRequirementNotFound)

	_, err = f.svc.Tracker.SubmitRequirement(ctx, s, a.ID, reqID, "https://files.test/r.pdf")
	require.NoError(t, err)
	_, err = f.svc.Tracker.SubmitRequirement(ctx, s, a.ID, reqID, "https://files.test/r2.pdf")
	require.NoError(t, err)

	list, err := f.svc.Tracker.ListRequirements(ctx, s, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "https://files.test/r2.pdf", list[0].FileURL)

	reviewed, err := f.svc.Tracker.ReviewRequirement(ctx, f.admin, a.ID, reqID, DecisionApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, reviewed.Status)
}

func TestEventService_CreateValidatesAndAnnounces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)

	tests := []struct {
		name  string
		event *models.PlacementEvent
	}{
		{name: "missing company", event: &models.PlacementEvent{Title: "SDE"}},
		{name: "unknown class", event: &models.PlacementEvent{Title: "SDE", Company: "Acme", EligibleClasses: []models.StudentClass{"FYBA"}}},
		{name: "duplicate requirement", event: &models.PlacementEvent{Title: "SDE", Company: "Acme", AdditionalRequirements: []models.PlacementRequirement{
			{RequirementType: "Resume"}, {RequirementType: "resume"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Events.Create(ctx, f.admin, tt.event)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}

	_, err := f.svc.Events.Create(ctx, s, &models.PlacementEvent{Title: "SDE", Company: "Acme"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	f.event(t, "Acme", models.ClassTYIT)
	feed, err := f.svc.Notifications.Feed(ctx, s)
	require.NoError(t, err)
	require.Len(t, feed.Recent, 1)
	assert.Equal(t, models.NotificationPlacement, feed.Recent[0].Type)
	assert.Equal(t, []models.StudentClass{models.ClassTYIT}, feed.Recent[0].TargetClasses)
}
