package memory

import (
	"context"
	"sort"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/app/repositories"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
)

func copySubmission(s *models.Submission) *models.Submission {
	c := *s
	c.Feedback = cloneString(s.Feedback)
	c.ReviewedAt = cloneTime(s.ReviewedAt)
	return &c
}

func (db *DB) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	if err := db.lockWrite(ctx); err != nil {
		return err
	}
	defer db.mu.Unlock()

	if _, ok := db.students[submission.StudentID]; !ok {
		return apperrors.ErrStudentNotFound
	}
	submission.SubmittedAt = stamp(submission.SubmittedAt)
	submission.Feedback = nil
	submission.ReviewedAt = nil
	db.submissions[submissionKey{submission.StudentID, submission.AssignmentType}] = copySubmission(submission)
	return nil
}

func (db *DB) GetSubmission(_ context.Context, studentID int64, assignment models.AssignmentType) (*models.Submission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if s, ok := db.submissions[submissionKey{studentID, assignment}]; ok {
		return copySubmission(s), nil
	}
	return nil, apperrors.ErrSubmissionNotFound
}

func (db *DB) ListSubmissions(_ context.Context, studentID int64) ([]*models.Submission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	submissions := []*models.Submission{}
	for key, s := range db.submissions {
		if key.studentID == studentID {
			submissions = append(submissions, copySubmission(s))
		}
	}
	sort.Slice(submissions, func(i, j int) bool {
		return submissions[i].SubmittedAt.Before(submissions[j].SubmittedAt)
	})
	return submissions, nil
}

func (db *DB) ReviewSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType, review repositories.SubmissionReview) (*models.Submission, error) {
	if err := db.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer db.mu.Unlock()

	if review.RefuseIfCredited {
		if _, ok := db.submissions[submissionKey{studentID, assignment}]; !ok {
			return nil, apperrors.ErrSubmissionNotFound
		}
		if a, ok := db.approvals[studentID]; ok && a.CreditsAwarded {
			return nil, apperrors.ErrCreditsOutstanding
		}
	}
	return db.setSubmissionStatus(studentID, assignment, review)
}

// setSubmissionStatus requires the write lock.
func (db *DB) setSubmissionStatus(studentID int64, assignment models.AssignmentType, review repositories.SubmissionReview) (*models.Submission, error) {
	s, ok := db.submissions[submissionKey{studentID, assignment}]
	if !ok {
		return nil, apperrors.ErrSubmissionNotFound
	}
	s.Status = review.Status
	s.ReviewedAt = timePtr(stamp(review.ReviewedAt))
	if review.Feedback != nil {
		s.Feedback = cloneString(review.Feedback)
	}
	return copySubmission(s), nil
}

func (db *DB) DeleteSubmission(ctx context.Context, studentID int64, assignment models.AssignmentType) error {
	if err := db.lockWrite(ctx); err != nil {
		return err
	}
	defer db.mu.Unlock()

	key := submissionKey{studentID, assignment}
	if _, ok := db.submissions[key]; !ok {
		return apperrors.ErrSubmissionNotFound
	}
	delete(db.submissions, key)
	return nil
}
