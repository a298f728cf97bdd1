package dto

import (
	"github.com/yigit/placementdesk/internal/app/models"
)

// RegisterStudentRequest represents student registration data
type RegisterStudentRequest struct {
	UID        string `json:"uid" binding:"required,max=128"`
	Email      string `json:"email" binding:"required,email"`
	FullName   string `json:"fullName" binding:"required,max=200"`
	RollNumber string `json:"rollNumber" binding:"max=32"`
	Class      string `json:"class" binding:"required,student_class"`
}

// ToModel converts the request into a student model
func (r RegisterStudentRequest) ToModel() *models.Student {
	return &models.Student{
		UID:        r.UID,
		Email:      r.Email,
		FullName:   r.FullName,
		RollNumber: r.RollNumber,
		Class:      models.StudentClass(r.Class),
	}
}

// UpdateStudentRequest edits a profile; omitted fields are unchanged
type UpdateStudentRequest struct {
	FullName   *string `json:"fullName" binding:"omitempty,max=200"`
	RollNumber *string `json:"rollNumber" binding:"omitempty,max=32"`
	Class      *string `json:"class" binding:"omitempty,student_class"`
}

// StudentResponse represents a student profile
type StudentResponse struct {
	ID           int64               `json:"id" example:"1"`
	UID          string              `json:"uid" example:"auth0|5f1c"`
	Email        string              `json:"email" example:"asha@college.edu"`
	FullName     string              `json:"fullName" example:"Asha Patil"`
	RollNumber   string              `json:"rollNumber" example:"21"`
	Class        models.StudentClass `json:"class" example:"TYIT"`
	TotalCredits int                 `json:"totalCredits" example:"2"`
	CreatedAt    string              `json:"createdAt" example:"2024-01-15T10:00:00Z"`
}

// NewStudentResponse converts a student model
func NewStudentResponse(s *models.Student) StudentResponse {
	return StudentResponse{
		ID:           s.ID,
		UID:          s.UID,
		Email:        s.Email,
		FullName:     s.FullName,
		RollNumber:   s.RollNumber,
		Class:        s.Class,
		TotalCredits: s.TotalCredits,
		CreatedAt:    formatTime(s.CreatedAt),
	}
}
