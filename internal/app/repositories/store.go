package repositories

import (
	"context"
	"time"

	"github.com/yigit/placementdesk/internal/app/models"
)

// StudentStore persists student profiles.
type StudentStore interface {
	CreateStudent(ctx context.Context, student *models.Student) error
	GetStudentByID(ctx context.Context, id int64) (*models.Student, error)
	GetStudentByUID(ctx context.Context, uid string) (*models.Student, error)
	ListStudents(ctx context.Context) ([]*models.Student, error)
	UpdateStudentProfile(ctx context.Context, id int64, update StudentProfileUpdate) (*models.Student, error)
}

// StudentProfileUpdate carries the editable profile fields; nil means unchanged.
type StudentProfileUpdate struct {
	FullName   *string
	RollNumber *string
	Class      *models.StudentClass
}

// SubmissionStore persists one submission per (student, assignment type).
type SubmissionStore interface {
	// UpsertSubmission writes the submission keyed by (StudentID, AssignmentType),
	// resetting review fields. It never creates a second row for the key.
	UpsertSubmission(ctx context.Context, submission *models.Submission) error
	GetSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType) (*models.Submission, error)
	ListSubmissions(ctx context.Context, studentID int64) ([]*models.Submission, error)
	ReviewSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType, review SubmissionReview) (*models.Submission, error)
	DeleteSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType) error
}

// SubmissionReview is an admin decision on a submission.
type SubmissionReview struct {
	Status     models.SubmissionStatus
	Feedback   *string
	ReviewedAt time.Time

	// RefuseIfCredited fails the review with ErrCreditsOutstanding while the
	// student's credits are awarded. The check and the write are atomic.
	RefuseIfCredited bool
}

// ApprovalStore owns the per-student approval flags. Every method that flips a
// flag also performs its dependent writes in the same transaction.
type ApprovalStore interface {
	GetApproval(ctx context.Context, studentID int64) (*models.ApprovalRecord, error)
	ListApprovals(ctx context.Context) ([]*models.ApprovalRecord, error)
	// ApproveOfferLetter marks the offer-letter submission approved and turns
	// the offer_letter_approved flag on. The submission must exist.
	ApproveOfferLetter(ctx context.Context, studentID int64, offerLetter models.AssignmentType, at time.Time) (*models.ApprovalRecord, error)
	// AwardCredits turns credits_awarded on only if it is currently off, adds
	// credits to the student's total and approves the completion submission.
	AwardCredits(ctx context.Context, studentID int64, completion models.AssignmentType, credits int, at time.Time) (*models.ApprovalRecord, error)
	// RevokeCredits turns credits_awarded off only if it is currently on and
	// subtracts credits from the student's total.
	RevokeCredits(ctx context.Context, studentID int64, credits int, at time.Time) (*models.ApprovalRecord, error)
	// ReconcileApproval forces each flag off when its backing submission is absent.
	ReconcileApproval(ctx context.Context, studentID int64, rule ReconcileRule) (*models.ApprovalRecord, ReconcileResult, error)
}

// ReconcileRule names the submissions backing each approval flag.
type ReconcileRule struct {
	OfferLetter models.AssignmentType
	Completion  models.AssignmentType
	Credits     int
	At          time.Time
}

// ReconcileResult reports which flags a reconciliation turned off.
type ReconcileResult struct {
	OfferLetterCleared bool
	CreditsRevoked     bool
}

// Changed reports whether anything was corrected.
func (r ReconcileResult) Changed() bool {
	return r.OfferLetterCleared || r.CreditsRevoked
}

// EventStore persists placement drives together with their requirement rows.
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.PlacementEvent) error
	GetEvent(ctx context.Context, id int64) (*models.PlacementEvent, error)
	ListEvents(ctx context.Context) ([]*models.PlacementEvent, error)
	SetEventOpen(ctx context.Context, id int64, open bool) (*models.PlacementEvent, error)
}

// ApplicationStore persists applications and their requirement submissions.
type ApplicationStore interface {
	// CreateApplication fails with ErrAlreadyApplied on a duplicate (student, event).
	CreateApplication(ctx context.Context, application *models.Application) error
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	ListApplicationsByStudent(ctx context.Context, studentID int64) ([]*models.Application, error)
	ListApplicationsByEvent(ctx context.Context, eventID int64) ([]*models.Application, error)
	HasAcceptedApplication(ctx context.Context, studentID int64) (bool, error)
	// TransitionApplication moves an application from one status to another.
	// It fails with ErrInvalidTransition if the current status is not from, and
	// with ErrAlreadyPlaced if the student already holds an accepted application.
	TransitionApplication(ctx context.Context, id int64, from, to models.ApplicationStatus, notes *string, at time.Time) (*models.Application, error)
	// SetOfferLetterURL is allowed only on accepted applications.
	SetOfferLetterURL(ctx context.Context, id int64, url string, at time.Time) (*models.Application, error)

	UpsertRequirementSubmission(ctx context.Context, submission *models.RequirementSubmission) error
	ListRequirementSubmissions(ctx context.Context, applicationID int64) ([]*models.RequirementSubmission, error)
	ReviewRequirementSubmission(ctx context.Context, applicationID, requirementID int64, review SubmissionReview) (*models.RequirementSubmission, error)
}

// NotificationStore persists announcements and their reader sets.
type NotificationStore interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	// ListNotifications returns notifications most recent first. A non-nil
	// Class keeps only notifications visible to that class.
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]*models.Notification, error)
	// MarkNotificationRead adds userID to the reader set; repeating it is a no-op.
	MarkNotificationRead(ctx context.Context, id, userID int64, at time.Time) error
}

// NotificationFilter narrows ListNotifications.
type NotificationFilter struct {
	Class *models.StudentClass
}

// Store is the full record store consumed by the services.
type Store interface {
	StudentStore
	SubmissionStore
	ApprovalStore
	EventStore
	ApplicationStore
	NotificationStore
	Ping(ctx context.Context) error
}
