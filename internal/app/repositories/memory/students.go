package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

func copyStudent(s *models.Student) *models.Student {
	c := *s
	return &c
}

func (db *DB) CreateStudent(ctx context.Context, student *models.Student) error {
	if err := db.lockWrite(ctx); err != nil {
		return err
	}
	defer db.mu.Unlock()

	for _, s := range db.students {
		if s.UID == student.UID || s.Email == student.Email {
			return apperrors.ErrStudentExists
		}
	}

	db.nextStudentID++
	student.ID = db.nextStudentID
	student.CreatedAt = stamp(student.CreatedAt)
	student.UpdatedAt = student.CreatedAt
	db.students[student.ID] = copyStudent(student)
	return nil
}

func (db *DB) GetStudentByID(_ context.Context, id int64) (*models.Student, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if s, ok := db.students[id]; ok {
		return copyStudent(s), nil
	}
	return nil, apperrors.ErrStudentNotFound
}

func (db *DB) GetStudentByUID(_ context.Context, uid string) (*models.Student, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, s := range db.students {
		if s.UID == uid {
			return copyStudent(s), nil
		}
	}
	return nil, apperrors.ErrStudentNotFound
}

func (db *DB) ListStudents(context.Context) ([]*models.Student, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	students := make([]*models.Student, 0, len(db.students))
	for _, s := range db.students {
		students = append(students, copyStudent(s))
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Class != students[j].Class {
			return students[i].Class < students[j].Class
		}
		if students[i].RollNumber != students[j].RollNumber {
			return students[i].RollNumber < students[j].RollNumber
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (db *DB) UpdateStudentProfile(ctx context.Context, id int64, update repositories.StudentProfileUpdate) (*models.Student, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	s, ok := db.students[id]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	if update.FullName != nil {
		s.FullName = *update.FullName
	}
	if update.RollNumber != nil {
		s.RollNumber = *update.RollNumber
	}
	if update.Class != nil {
		s.Class = *update.Class
	}
	s.UpdatedAt = time.Now().UTC()
	return copyStudent(s), nil
}
