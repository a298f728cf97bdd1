package repositories

import (
	"context"

	"github.com/yigit/placementdesk/internal/db"
)

// Repositories holds all the repository instances. The embedded repositories
// together implement Store.
type Repositories struct {
	*StudentRepository
	*SubmissionRepository
	*ApprovalRepository
	*EventRepository
	*ApplicationRepository
	*NotificationRepository

	db *db.PostgresDB
}

var _ Store = (*Repositories)(nil)

// NewRepositories initializes all repositories
func NewRepositories(database *db.PostgresDB) *Repositories {
	return &Repositories{
		StudentRepository:      NewStudentRepository(database),
		SubmissionRepository:   NewSubmissionRepository(database),
		ApprovalRepository:     NewApprovalRepository(database),
		EventRepository:        NewEventRepository(database),
		ApplicationRepository:  NewApplicationRepository(database),
		NotificationRepository: NewNotificationRepository(database),
		db:                     database,
	}
}

// Ping checks that the database is reachable.
func (r *Repositories) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return dbError(err, "database ping failed")
	}
	return nil
}
