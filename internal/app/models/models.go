package models

// RoleType defines the user role type
type RoleType string

const (
	RoleStudent RoleType = "STUDENT"
	RoleAdmin   RoleType = "ADMIN"
)

// StudentClass is the class a student is enrolled in: two second-year and two
// third-year tracks.
type StudentClass string

const (
	ClassSYIT StudentClass = "SYIT"
	ClassSYCS StudentClass = "SYCS"
	ClassTYIT StudentClass = "TYIT"
	ClassTYCS StudentClass = "TYCS"
)

// AllClasses lists every valid StudentClass in display order.
var AllClasses = []StudentClass{ClassSYIT, ClassSYCS, ClassTYIT, ClassTYCS}

// Valid reports whether c is one of the known classes.
func (c StudentClass) Valid() bool {
	for _, known := range AllClasses {
		if c == known {
			return true
		}
	}
	return false
}

// ClassEligible implements the shared visibility rule for drives and
// notifications: an empty target list is open to every class.
func ClassEligible(targets []StudentClass, class StudentClass) bool {
	if len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if t == class {
			return true
		}
	}
	return false
}
