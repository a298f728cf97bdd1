// Package memory is a mutex-guarded, in-process implementation of
// repositories.Store. It backs the service tests and the read-only demo mode
// used when the database is unreachable at startup.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

type submissionKey struct {
	studentID  int64
	assignment models.AssignmentType
}

type requirementKey struct {
	applicationID int64
	requirementID int64
}

// DB holds every table behind one lock, so multi-row writes are atomic.
type DB struct {
	mu       sync.RWMutex
	readOnly bool

	students               map[int64]*models.Student
	submissions            map[submissionKey]*models.Submission
	approvals              map[int64]*models.ApprovalRecord
	events                 map[int64]*models.PlacementEvent
	applications           map[int64]*models.Application
	requirementSubmissions map[requirementKey]*models.RequirementSubmission
	notifications          map[int64]*models.Notification

	nextStudentID      int64
	nextEventID        int64
	nextRequirementID  int64
	nextApplicationID  int64
	nextNotificationID int64
}

var _ repositories.Store = (*DB)(nil)

// New returns an empty writable store.
func New() *DB {
	return &DB{
		students:               make(map[int64]*models.Student),
		submissions:            make(map[submissionKey]*models.Submission),
		approvals:              make(map[int64]*models.ApprovalRecord),
		events:                 make(map[int64]*models.PlacementEvent),
		applications:           make(map[int64]*models.Application),
		requirementSubmissions: make(map[requirementKey]*models.RequirementSubmission),
		notifications:          make(map[int64]*models.Notification),
	}
}

// SetReadOnly toggles demo mode. While read-only every write fails with
// apperrors.ErrReadOnly.
func (db *DB) SetReadOnly(readOnly bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.readOnly = readOnly
}

// ReadOnly reports whether writes are rejected.
func (db *DB) ReadOnly() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.readOnly
}

// Ping always succeeds.
func (db *DB) Ping(context.Context) error {
	return nil
}

// lockWrite takes the write lock, returning ErrReadOnly in demo mode. Callers
// must defer db.mu.Unlock() only when err is nil.
func (db *DB) lockWrite(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	if db.readOnly {
		db.mu.Unlock()
		return apperrors.ErrReadOnly
	}
	return nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
