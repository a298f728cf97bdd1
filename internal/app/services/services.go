package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
	"github.com/yigit/placementdesk/internal/pkg/filestorage"
	"github.com/yigit/placementdesk/internal/worker"
)

// Services defined in this package:
// - StudentService: student registration and profile edits
// - SubmissionLedger: per-student assignment submissions
// - ApprovalGate: offer-letter approval, credit award and the unlock rule
// - EventService: placement drives
// - ApplicationTracker: applications to drives and their requirement uploads
// - NotificationDispatcher: announcements and read state
// - UploadService: object store uploads feeding the ledger and the tracker
type Services struct {
	Students      *StudentService
	Ledger        *SubmissionLedger
	Gate          *ApprovalGate
	Events        *EventService
	Tracker       *ApplicationTracker
	Notifications *NotificationDispatcher
	Uploads       *UploadService
}

// Deps are the collaborators shared by the services.
type Deps struct {
	Store   repositories.Store
	Catalog *models.AssignmentCatalog
	Feed    changefeed.Publisher
	Objects filestorage.ObjectStore
	Pool    *worker.Pool
	Logger  zerolog.Logger

	Bucket              string
	CreditsPerAward     int
	RecentNotifications int
	MaxUploadBytes      int64
}

// NewServices wires every service from deps.
func NewServices(deps Deps) *Services {
	if deps.Feed == nil {
		deps.Feed = changefeed.Nop{}
	}

	gate := NewApprovalGate(deps.Store, deps.Catalog, deps.CreditsPerAward, deps.Feed, deps.Logger)
	ledger := NewSubmissionLedger(deps.Store, deps.Catalog, gate, deps.Feed, deps.Logger)
	notifications := NewNotificationDispatcher(deps.Store, deps.RecentNotifications, deps.Feed, deps.Logger)
	tracker := NewApplicationTracker(deps.Store, deps.Feed, deps.Logger)

	return &Services{
		Students:      NewStudentService(deps.Store, deps.Feed, deps.Logger),
		Ledger:        ledger,
		Gate:          gate,
		Events:        NewEventService(deps.Store, notifications, deps.Feed, deps.Logger),
		Tracker:       tracker,
		Notifications: notifications,
		Uploads: NewUploadService(UploadConfig{
			Bucket:   deps.Bucket,
			MaxBytes: deps.MaxUploadBytes,
		}, deps.Objects, deps.Pool, ledger, gate, tracker, deps.Logger),
	}
}

// now is the clock used for every timestamp the services write.
var now = func() time.Time { return time.Now().UTC() }

// Decision is an admin review outcome.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Status converts the decision into a submission status.
func (d Decision) Status() (models.SubmissionStatus, error) {
	switch Decision(strings.ToLower(string(d))) {
	case DecisionApproved:
		return models.SubmissionApproved, nil
	case DecisionRejected:
		return models.SubmissionRejected, nil
	}
	return "", apperrors.ErrInvalidDecision
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func validateClasses(classes []models.StudentClass) ([]models.StudentClass, error) {
	seen := make(map[models.StudentClass]bool, len(classes))
	out := make([]models.StudentClass, 0, len(classes))
	for _, c := range classes {
		if !c.Valid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown class %q", c))
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func submissionKey(studentID int64, assignment models.AssignmentType) string {
	return fmt.Sprintf("%d/%s", studentID, assignment)
}

func emit(ctx context.Context, feed changefeed.Publisher, event changefeed.Event) {
	if event.At.IsZero() {
		event.At = now()
	}
	feed.Publish(ctx, event)
}

// classNames converts a class list for a change event. Empty stays nil so
// the event reaches every class.
func classNames(classes []models.StudentClass) []string {
	if len(classes) == 0 {
		return nil
	}
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = string(c)
	}
	return names
}
