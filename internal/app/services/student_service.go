package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/yigit/placementdesk/internal/app/auth"
	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/changefeed"
)

// StudentService handles student registration and profile edits
type StudentService struct {
	store repositories.Store
	feed  changefeed.Publisher
	log   zerolog.Logger
}

// NewStudentService creates a new student service
func NewStudentService(store repositories.Store, feed changefeed.Publisher, log zerolog.Logger) *StudentService {
	return &StudentService{
		store: store,
		feed:  feed,
		log:   log.With().Str("service", "student").Logger(),
	}
}

var validate = validator.New()

// validateStudent validates student data before database operations
func validateStudent(student *models.Student) error {
	if student == nil {
		return apperrors.NewValidationError("student is nil")
	}
	student.UID = strings.TrimSpace(student.UID)
	student.Email = strings.ToLower(strings.TrimSpace(student.Email))
	student.FullName = strings.TrimSpace(student.FullName)
	student.RollNumber = strings.TrimSpace(student.RollNumber)

	if student.UID == "" {
		return apperrors.NewValidationError("uid is required")
	}
	if err := validate.Var(student.Email, "required,email"); err != nil {
		return apperrors.NewValidationError("a valid email is required")
	}
	if !student.Class.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown class %q", student.Class))
	}
	return nil
}

// Register creates a student profile with zero credits. Admin only; the
// identity provider links the student id into session tokens.
func (s *StudentService) Register(ctx context.Context, p auth.Principal, student *models.Student) (*models.Student, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := validateStudent(student); err != nil {
		return nil, err
	}
	student.TotalCredits = 0

	if err := s.store.CreateStudent(ctx, student); err != nil {
		return nil, err
	}

	s.log.Info().Int64("studentID", student.ID).Str("class", string(student.Class)).Msg("Student registered")
	emit(ctx, s.feed, changefeed.Event{
		Table:     changefeed.TableStudents,
		Op:        changefeed.OpInsert,
		Key:       strconv.FormatInt(student.ID, 10),
		StudentID: student.ID,
	})
	return student, nil
}

// Get returns a student profile
func (s *StudentService) Get(ctx context.Context, p auth.Principal, id int64) (*models.Student, error) {
	if err := p.RequireStudent(id); err != nil {
		return nil, err
	}
	return s.store.GetStudentByID(ctx, id)
}

// List returns every student. Admin only.
func (s *StudentService) List(ctx context.Context, p auth.Principal) ([]*models.Student, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.store.ListStudents(ctx)
}

// UpdateProfile edits the name, roll number or class of a student.
func (s *StudentService) UpdateProfile(ctx context.Context, p auth.Principal, id int64, update repositories.StudentProfileUpdate) (*models.Student, error) {
	if err := p.RequireStudent(id); err != nil {
		return nil, err
	}
	update.FullName = trimmedPtr(update.FullName)
	update.RollNumber = trimmedPtr(update.RollNumber)
	if update.Class != nil && !update.Class.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown class %q", *update.Class))
	}

	student, err := s.store.UpdateStudentProfile(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("studentID", id).Msg("Student profile updated")
	emit(ctx, s.feed, changefeed.Event{
		Table:     changefeed.TableStudents,
		Op:        changefeed.OpUpdate,
		Key:       strconv.FormatInt(id, 10),
		StudentID: id,
	})
	return student, nil
}
