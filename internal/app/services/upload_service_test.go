package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/filestorage"
)

func TestUploadService_SubmitAssignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)

	_, err := f.svc.Uploads.SubmitAssignment(ctx, s, s.StudentID, models.AssignmentWeeklyReport, upload("report"))
	assert.ErrorIs(t, err, apperrors.ErrLockedAssignment)

	sub, err := f.svc.Uploads.SubmitAssignment(ctx, s, s.StudentID, models.AssignmentOfferLetter, upload("offer"))
	require.NoError(t, err)
	assert.Equal(t, "http://files.test/uploads/documents/students/1/offer_letter.pdf", sub.FileURL)
	assert.Equal(t, models.SubmissionSubmitted, sub.Status)

	require.NoError(t, f.svc.Uploads.WithdrawAssignment(ctx, s, s.StudentID, models.AssignmentOfferLetter))
	_, err = f.svc.Ledger.Get(ctx, s, s.StudentID, models.AssignmentOfferLetter)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUploadService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)

	tooBig := upload("x")
	tooBig.Size = 2 << 20
	empty := upload("")
	noName := upload("x")
	noName.Filename = ""

	for name, u := range map[string]Upload{"too big": tooBig, "empty": empty, "no name": noName} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Uploads.SubmitAssignment(ctx, s, s.StudentID, models.AssignmentOfferLetter, u)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}
}

func TestUploadService_CancelledUploadLeavesNoSubmission(t *testing.T) {
	store := &blockingStore{started: make(chan struct{})}
	f := newFixture(t, store)
	s := f.register(t, "asha", models.ClassTYIT)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-store.started
		cancel()
	}()

	_, err := f.svc.Uploads.SubmitAssignment(ctx, s, s.StudentID, models.AssignmentOfferLetter, upload("offer"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = f.store.GetSubmission(context.Background(), s.StudentID, models.AssignmentOfferLetter)
	assert.ErrorIs(t, err, apperrors.ErrSubmissionNotFound)
}

func TestUploadService_FailedUploadSurfacesUpstreamError(t *testing.T) {
	f := newFixture(t, failingStore{err: errors.New("connection refused")})
	s := f.register(t, "asha", models.ClassTYIT)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.svc.Uploads.SubmitAssignment(ctx, s, s.StudentID, models.AssignmentOfferLetter, upload("offer"))
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)

	_, err = f.store.GetSubmission(ctx, s.StudentID, models.AssignmentOfferLetter)
	assert.ErrorIs(t, err, apperrors.ErrSubmissionNotFound)
}

func TestUploadService_OfferLetterRequiresAcceptance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	s := f.register(t, "asha", models.ClassTYIT)
	e := f.event(t, "Acme")
	a, err := f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	require.NoError(t, err)

	_, err = f.svc.Uploads.AttachOfferLetter(ctx, s, a.ID, upload("offer"))
	assert.ErrorIs(t, err, apperrors.ErrNotAccepted)

	_, err = f.svc.Tracker.Accept(ctx, f.admin, a.ID, nil)
	require.NoError(t, err)
	updated, err := f.svc.Uploads.AttachOfferLetter(ctx, s, a.ID, upload("offer"))
	require.NoError(t, err)
	require.NotNil(t, updated.OfferLetterURL)
	assert.Contains(t, *updated.OfferLetterURL, "/documents/applications/1/offer_letter.pdf")
}

// storedObjects lists the files under a LocalStorage root, slash separated.
func storedObjects(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return out
}

func namedUpload(filename, content string) Upload {
	u := upload(content)
	u.Filename = filename
	return u
}

func TestUploadService_ReuploadRemovesSupersededObject(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, err := filestorage.NewLocalStorage(root, "http://files.test/uploads")
	require.NoError(t, err)
	f := newFixture(t, local)
	s := f.register(t, "asha", models.ClassTYIT)

	_, err = f.svc.Uploads.SubmitAssignment(ctx, s, s.StudentID, models.AssignmentOfferLetter, namedUpload("doc.pdf", "v1"))
	require.NoError(t, err)
	sub, err := f.svc.Uploads.SubmitAssignment(ctx, s, s.StudentID, models.AssignmentOfferLetter, namedUpload("doc.docx", "v2"))
	require.NoError(t, err)
	assert.Equal(t, "http://files.test/uploads/documents/students/1/offer_letter.docx", sub.FileURL)
	assert.Equal(t, []string{"documents/students/1/offer_letter.docx"}, storedObjects(t, root))

	require.NoError(t, f.svc.Uploads.WithdrawAssignment(ctx, s, s.StudentID, models.AssignmentOfferLetter))
	assert.Empty(t, storedObjects(t, root))
}

func TestUploadService_ReuploadApplicationDocuments(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, err := filestorage.NewLocalStorage(root, "http://files.test/uploads")
	require.NoError(t, err)
	f := newFixture(t, local)
	s := f.register(t, "asha", models.ClassTYIT)

	e, err := f.svc.Events.Create(ctx, f.admin, &models.PlacementEvent{
		Title: "Acme drive", Company: "Acme", IsOpen: true,
		AdditionalRequirements: []models.PlacementRequirement{{RequirementType: "Resume", Required: true}},
	})
	require.NoError(t, err)
	reqID := e.AdditionalRequirements[0].ID
	a, err := f.svc.Tracker.Apply(ctx, s, s.StudentID, e.ID)
	require.NoError(t, err)
	_, err = f.svc.Tracker.Accept(ctx, f.admin, a.ID, nil)
	require.NoError(t, err)

	for _, name := range []string{"offer.pdf", "offer.png"} {
		_, err = f.svc.Uploads.AttachOfferLetter(ctx, s, a.ID, namedUpload(name, "offer"))
		require.NoError(t, err)
	}
	for _, name := range []string{"cv.pdf", "cv.doc"} {
		_, err = f.svc.Uploads.SubmitRequirement(ctx, s, a.ID, reqID, namedUpload(name, "cv"))
		require.NoError(t, err)
	}

	assert.ElementsMatch(t, []string{
		"documents/applications/1/offer_letter.png",
		fmt.Sprintf("documents/applications/1/requirements/%d.doc", reqID),
	}, storedObjects(t, root))
}
