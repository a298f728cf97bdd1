package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/filestorage"
	"github.com/yigit/placementdesk/internal/worker"
)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// UploadConfig configures the upload service
type UploadConfig struct {
	Bucket   string
	MaxBytes int64
}

// UploadService stores files in the object store on the worker pool and then
// records them. Nothing is recorded unless the upload completes: a failed or
// cancelled upload leaves the workflow state untouched.
type UploadService struct {
	config  UploadConfig
	objects filestorage.ObjectStore
	pool    *worker.Pool
	ledger  *SubmissionLedger
	gate    *ApprovalGate
	tracker *ApplicationTracker
	log     zerolog.Logger
}

// NewUploadService creates a new upload service
func NewUploadService(config UploadConfig, objects filestorage.ObjectStore, pool *worker.Pool, ledger *SubmissionLedger, gate *ApprovalGate, tracker *ApplicationTracker, log zerolog.Logger) *UploadService {
	return &UploadService{
		config:  config,
		objects: objects,
		pool:    pool,
		ledger:  ledger,
		gate:    gate,
		tracker: tracker,
		log:     log.With().Str("service", "uploads").Logger(),
	}
}

func (s *UploadService) validate(upload Upload) error {
	if upload.Body == nil || strings.TrimSpace(upload.Filename) == "" {
		return apperrors.NewValidationError("file is required")
	}
	if upload.Size == 0 {
		return apperrors.NewValidationError("file is empty")
	}
	if s.config.MaxBytes > 0 && upload.Size > s.config.MaxBytes {
		return apperrors.NewValidationError(fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxBytes))
	}
	return nil
}

// put runs the object store write on the pool and returns the object URL.
func (s *UploadService) put(ctx context.Context, name string, upload Upload) (string, error) {
	var url string
	err := s.pool.Do(ctx, func(jobCtx context.Context) error {
		var err error
		url, err = s.objects.Put(jobCtx, s.config.Bucket, name, upload.Body, upload.Size, upload.ContentType)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.log.Info().Str("object", name).Msg("Upload cancelled")
			return "", ctxErr
		}
		if errors.Is(err, worker.ErrPoolFull) || errors.Is(err, worker.ErrPoolStopped) {
			return "", apperrors.NewUpstreamError(err, "upload capacity exhausted, try again")
		}
		s.log.Error().Err(err).Str("object", name).Msg("Upload failed")
		return "", apperrors.NewUpstreamError(err, "failed to store file")
	}
	return url, nil
}

// SubmitAssignment uploads a file for an assignment and records it in the
// ledger. The unlock rule is checked before anything is uploaded.
func (s *UploadService) SubmitAssignment(ctx context.Context, p auth.Principal, studentID int64, assignment models.AssignmentType, upload Upload) (*models.Submission, error) {
	if err := p.RequireStudent(studentID); err != nil {
		return nil, err
	}
	if _, ok := s.ledger.Catalog().Lookup(assignment); !ok {
		return nil, apperrors.ErrUnknownAssignment
	}
	if err := s.validate(upload); err != nil {
		return nil, err
	}
	if err := s.gate.CheckUnlocked(ctx, studentID, assignment); err != nil {
		return nil, err
	}
	var previousURL string
	previous, err := s.ledger.Get(ctx, p, studentID, assignment)
	switch {
	case err == nil:
		previousURL = previous.FileURL
	case !errors.Is(err, apperrors.ErrSubmissionNotFound):
		return nil, err
	}

	url, err := s.put(ctx, filestorage.SubmissionObjectName(studentID, string(assignment), upload.Filename), upload)
	if err != nil {
		return nil, err
	}
	submission, err := s.ledger.Submit(ctx, p, studentID, assignment, url)
	if err != nil {
		return nil, err
	}
	s.removeReplaced(ctx, previousURL, url)
	return submission, nil
}

// WithdrawAssignment withdraws a submission and removes its stored file.
func (s *UploadService) WithdrawAssignment(ctx context.Context, p auth.Principal, studentID int64, assignment models.AssignmentType) error {
	withdrawn, err := s.ledger.Withdraw(ctx, p, studentID, assignment)
	if err != nil {
		return err
	}
	s.removeObject(ctx, withdrawn.FileURL)
	return nil
}

// removeReplaced deletes the object a new upload superseded. Objects are
// named after the record plus the file extension, so a re-upload with another
// extension leaves the earlier object under a different name.
func (s *UploadService) removeReplaced(ctx context.Context, previousURL, currentURL string) {
	if previousURL == "" || previousURL == currentURL {
		return
	}
	s.removeObject(ctx, previousURL)
}

func (s *UploadService) removeObject(ctx context.Context, url string) {
	name, ok := s.objectName(url)
	if !ok {
		return
	}
	if err := s.objects.Delete(ctx, s.config.Bucket, name); err != nil {
		s.log.Warn().Err(err).Str("object", name).Msg("Failed to delete stored file")
	}
}

// objectName recovers the object name from a URL returned by Put.
func (s *UploadService) objectName(url string) (string, bool) {
	marker := "/" + s.config.Bucket + "/"
	i := strings.LastIndex(url, marker)
	if i < 0 {
		return "", false
	}
	name := url[i+len(marker):]
	return name, name != ""
}

// AttachOfferLetter uploads the offer letter of an accepted application.
func (s *UploadService) AttachOfferLetter(ctx context.Context, p auth.Principal, applicationID int64, upload Upload) (*models.Application, error) {
	if err := s.validate(upload); err != nil {
		return nil, err
	}
	application, err := s.tracker.CheckOfferLetterAllowed(ctx, p, applicationID)
	if err != nil {
		return nil, err
	}
	var previousURL string
	if application.OfferLetterURL != nil {
		previousURL = *application.OfferLetterURL
	}

	url, err := s.put(ctx, filestorage.OfferLetterObjectName(applicationID, upload.Filename), upload)
	if err != nil {
		return nil, err
	}
	updated, err := s.tracker.AttachOfferLetter(ctx, p, applicationID, url)
	if err != nil {
		return nil, err
	}
	s.removeReplaced(ctx, previousURL, url)
	return updated, nil
}

// SubmitRequirement uploads a file against one of a drive's requirements.
func (s *UploadService) SubmitRequirement(ctx context.Context, p auth.Principal, applicationID, requirementID int64, upload Upload) (*models.RequirementSubmission, error) {
	if err := s.validate(upload); err != nil {
		return nil, err
	}
	if _, err := s.tracker.CheckRequirementAllowed(ctx, p, applicationID, requirementID); err != nil {
		return nil, err
	}
	existing, err := s.tracker.ListRequirements(ctx, p, applicationID)
	if err != nil {
		return nil, err
	}
	var previousURL string
	for _, r := range existing {
		if r.RequirementID == requirementID {
			previousURL = r.FileURL
		}
	}

	url, err := s.put(ctx, filestorage.RequirementObjectName(applicationID, requirementID, upload.Filename), upload)
	if err != nil {
		return nil, err
	}
	submission, err := s.tracker.SubmitRequirement(ctx, p, applicationID, requirementID, url)
	if err != nil {
		return nil, err
	}
	s.removeReplaced(ctx, previousURL, url)
	return submission, nil
}
