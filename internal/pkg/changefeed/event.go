package changefeed

import (
	"context"
	"time"
)

// Table names a watched record set.
type Table string

const (
	TableStudents               Table = "students"
	TableSubmissions            Table = "submissions"
	TableApprovals              Table = "approvals"
	TableEvents                 Table = "placement_events"
	TableApplications           Table = "applications"
	TableRequirementSubmissions Table = "requirement_submissions"
	TableNotifications          Table = "notifications"
)

// KnownTables lists every table a session may subscribe to.
var KnownTables = []Table{
	TableStudents, TableSubmissions, TableApprovals, TableEvents,
	TableApplications, TableRequirementSubmissions, TableNotifications,
}

// Valid reports whether t is a known table.
func (t Table) Valid() bool {
	for _, known := range KnownTables {
		if t == known {
			return true
		}
	}
	return false
}

// Op is the kind of change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes one committed change. Clients use it as a refresh trigger;
// the status fields let them patch a list in place when they can.
type Event struct {
	Table     Table     `json:"table"`
	Op        Op        `json:"op"`
	Key       string    `json:"key"`
	StudentID int64     `json:"studentId,omitempty"`
	EventID   int64     `json:"eventId,omitempty"`
	OldStatus string    `json:"oldStatus,omitempty"`
	NewStatus string    `json:"newStatus,omitempty"`
	At        time.Time `json:"at"`

	// Classes limits a broadcast change to these student classes. Empty
	// means every class may see it.
	Classes []string `json:"classes,omitempty"`

	// Origin identifies the publishing instance when relayed through Redis.
	Origin string `json:"origin,omitempty"`
}

// Filter selects events. Zero fields match anything.
type Filter struct {
	Table     Table
	StudentID int64
	EventID   int64
	Class     string
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.StudentID != 0 && f.StudentID != e.StudentID {
		return false
	}
	if f.EventID != 0 && f.EventID != e.EventID {
		return false
	}
	if f.Class != "" && len(e.Classes) > 0 && !containsClass(e.Classes, f.Class) {
		return false
	}
	return true
}

func containsClass(classes []string, class string) bool {
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}

// Publisher emits change events. Publishing never fails the write that caused
// it; implementations log delivery problems instead.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Feed is a Publisher that sessions can subscribe to.
type Feed interface {
	Publisher
	Subscribe(filter Filter) *Subscription
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) {}
