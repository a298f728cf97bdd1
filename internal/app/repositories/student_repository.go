package repositories

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/db"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/dberrors"
	"github.com/yigit/placementdesk/internal/pkg/logger"
)

var studentColumns = []string{
	"id", "uid", "email", "full_name", "roll_number", "class", "total_credits", "created_at", "updated_at",
}

// StudentRepository handles database operations for students
type StudentRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *db.PostgresDB) *StudentRepository {
	return &StudentRepository{db: db, sb: newBuilder()}
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	s := &models.Student{}
	var class string
	err := row.Scan(&s.ID, &s.UID, &s.Email, &s.FullName, &s.RollNumber, &class,
		&s.TotalCredits, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Class = models.StudentClass(class)
	return s, nil
}

// CreateStudent inserts a student and fills ID and timestamps.
func (r *StudentRepository) CreateStudent(ctx context.Context, student *models.Student) error {
	sql, args, err := r.sb.Insert("students").
		Columns("uid", "email", "full_name", "roll_number", "class", "total_credits").
		Values(student.UID, student.Email, student.FullName, student.RollNumber, string(student.Class), student.TotalCredits).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create student SQL")
		return dbError(err, "failed to build create student query")
	}

	err = r.db.Pool.QueryRow(ctx, sql, args...).Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "students_uid_key") ||
			dberrors.IsDuplicateConstraintError(err, "students_email_key") {
			return apperrors.ErrStudentExists
		}
		logger.Error().Err(err).Str("uid", student.UID).Msg("Error executing create student query")
		return dbError(err, "error creating student")
	}
	return nil
}

func (r *StudentRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.Student, error) {
	sql, args, err := r.sb.Select(studentColumns...).
		From("students").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get student SQL")
		return nil, dbError(err, "failed to build get student query")
	}

	student, err := scanStudent(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Msg("Error scanning student row")
		return nil, dbError(err, "error getting student")
	}
	return student, nil
}

// GetStudentByID retrieves a student by ID
func (r *StudentRepository) GetStudentByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetStudentByUID retrieves a student by external identity id
func (r *StudentRepository) GetStudentByUID(ctx context.Context, uid string) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"uid": uid})
}

// ListStudents returns every student ordered by class and roll number.
func (r *StudentRepository) ListStudents(ctx context.Context) ([]*models.Student, error) {
	sql, args, err := r.sb.Select(studentColumns...).
		From("students").
		OrderBy("class ASC", "roll_number ASC", "id ASC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list students SQL")
		return nil, dbError(err, "failed to build list students query")
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list students query")
		return nil, dbError(err, "error querying students")
	}
	defer rows.Close()

	students := []*models.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, dbError(err, "error scanning student row")
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating student rows")
	}
	return students, nil
}

// UpdateStudentProfile applies the non-nil fields of update.
func (r *StudentRepository) UpdateStudentProfile(ctx context.Context, id int64, update StudentProfileUpdate) (*models.Student, error) {
	set := map[string]interface{}{"updated_at": squirrel.Expr("NOW()")}
	if update.FullName != nil {
		set["full_name"] = *update.FullName
	}
	if update.RollNumber != nil {
		set["roll_number"] = *update.RollNumber
	}
	if update.Class != nil {
		set["class"] = string(*update.Class)
	}

	sql, args, err := r.sb.Update("students").
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(studentColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update student SQL")
		return nil, dbError(err, "failed to build update student query")
	}

	student, err := scanStudent(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Int64("studentID", id).Msg("Error executing update student query")
		return nil, dbError(err, "error updating student")
	}
	return student, nil
}
