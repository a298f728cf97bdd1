package models

import "time"

// Student defines the student model based on the 'students' table
type Student struct {
	ID           int64        `json:"id" db:"id" example:"1"`
	UID          string       `json:"uid" db:"uid" example:"auth0|5f1c"`           // External identity id, unique
	Email        string       `json:"email" db:"email" example:"asha@college.edu"` // Unique
	FullName     string       `json:"fullName" db:"full_name" example:"Asha Patil"`
	RollNumber   string       `json:"rollNumber" db:"roll_number" example:"21"` // Unique only within a class
	Class        StudentClass `json:"class" db:"class" example:"TYIT"`
	TotalCredits int          `json:"totalCredits" db:"total_credits" example:"2"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}
