package models

import (
	"fmt"
)

// AssignmentType identifies one of the internship documents a student submits.
type AssignmentType string

const (
	AssignmentOfferLetter      AssignmentType = "offer_letter"
	AssignmentCompletionLetter AssignmentType = "completion_letter"
	AssignmentWeeklyReport     AssignmentType = "weekly_report"
	AssignmentStudentOutcome   AssignmentType = "student_outcome"
	AssignmentStudentFeedback  AssignmentType = "student_feedback"
	AssignmentCompanyOutcome   AssignmentType = "company_outcome"
)

// AssignmentDefinition is one row of the assignment catalog.
type AssignmentDefinition struct {
	Type          AssignmentType `json:"type" yaml:"type"`
	Title         string         `json:"title" yaml:"title"`
	Required      bool           `json:"required" yaml:"required"`
	UnlocksOthers bool           `json:"unlocksOthers" yaml:"unlocks_others"`
	AwardsCredits bool           `json:"awardsCredits" yaml:"awards_credits"`
}

// DefaultAssignments is the catalog used when configuration does not override it.
var DefaultAssignments = []AssignmentDefinition{
	{Type: AssignmentOfferLetter, Title: "Offer Letter", Required: true, UnlocksOthers: true},
	{Type: AssignmentCompletionLetter, Title: "Completion Letter", Required: true, AwardsCredits: true},
	{Type: AssignmentWeeklyReport, Title: "Weekly Report", Required: true},
	{Type: AssignmentStudentOutcome, Title: "Student Outcome", Required: true},
	{Type: AssignmentStudentFeedback, Title: "Student Feedback", Required: true},
	{Type: AssignmentCompanyOutcome, Title: "Company Outcome", Required: true},
}

// AssignmentCatalog is the immutable, ordered set of assignment definitions.
type AssignmentCatalog struct {
	defs     []AssignmentDefinition
	byType   map[AssignmentType]AssignmentDefinition
	unlocker AssignmentType
	credited AssignmentType
}

// NewAssignmentCatalog validates defs and builds a catalog. Exactly one entry
// must unlock the others and exactly one, different, entry must award credits.
func NewAssignmentCatalog(defs []AssignmentDefinition) (*AssignmentCatalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("assignment catalog is empty")
	}
	c := &AssignmentCatalog{
		defs:   make([]AssignmentDefinition, 0, len(defs)),
		byType: make(map[AssignmentType]AssignmentDefinition, len(defs)),
	}
	for _, d := range defs {
		if d.Type == "" {
			return nil, fmt.Errorf("assignment catalog entry has empty type")
		}
		if _, dup := c.byType[d.Type]; dup {
			return nil, fmt.Errorf("assignment type %q listed twice", d.Type)
		}
		if d.UnlocksOthers {
			if c.unlocker != "" {
				return nil, fmt.Errorf("assignment types %q and %q both unlock others", c.unlocker, d.Type)
			}
			c.unlocker = d.Type
		}
		if d.AwardsCredits {
			if c.credited != "" {
				return nil, fmt.Errorf("assignment types %q and %q both award credits", c.credited, d.Type)
			}
			c.credited = d.Type
		}
		c.defs = append(c.defs, d)
		c.byType[d.Type] = d
	}
	if c.unlocker == "" {
		return nil, fmt.Errorf("assignment catalog has no entry that unlocks others")
	}
	if c.credited == "" {
		return nil, fmt.Errorf("assignment catalog has no entry that awards credits")
	}
	if c.unlocker == c.credited {
		return nil, fmt.Errorf("assignment type %q cannot both unlock others and award credits", c.unlocker)
	}
	return c, nil
}

// MustDefaultCatalog returns the catalog built from DefaultAssignments.
func MustDefaultCatalog() *AssignmentCatalog {
	c, err := NewAssignmentCatalog(DefaultAssignments)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the definition for t.
func (c *AssignmentCatalog) Lookup(t AssignmentType) (AssignmentDefinition, bool) {
	d, ok := c.byType[t]
	return d, ok
}

// All returns the definitions in catalog order.
func (c *AssignmentCatalog) All() []AssignmentDefinition {
	out := make([]AssignmentDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Unlocker is the type whose approval unlocks every other type.
func (c *AssignmentCatalog) Unlocker() AssignmentType { return c.unlocker }

// CreditBearing is the type whose approval awards internship credits.
func (c *AssignmentCatalog) CreditBearing() AssignmentType { return c.credited }
