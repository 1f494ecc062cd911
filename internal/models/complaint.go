package models

import "time"

// ComplaintStatus is the closed workflow state set for complaints.
type ComplaintStatus string

const (
	ComplaintOpen       ComplaintStatus = "OPEN"
	ComplaintInProgress ComplaintStatus = "IN_PROGRESS"
	ComplaintResolved   ComplaintStatus = "RESOLVED"
	ComplaintRejected   ComplaintStatus = "REJECTED"
)

// Valid reports whether the status is a supported value.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintOpen, ComplaintInProgress, ComplaintResolved, ComplaintRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the complaint workflow: open complaints may move
// to in-progress or a terminal state; in-progress only to a terminal state;
// terminal states are final.
func (s ComplaintStatus) CanTransitionTo(next ComplaintStatus) bool {
	switch s {
	case ComplaintOpen:
		return next == ComplaintInProgress || next == ComplaintResolved || next == ComplaintRejected
	case ComplaintInProgress:
		return next == ComplaintResolved || next == ComplaintRejected
	default:
		return false
	}
}

// Complaint is a grievance filed by a student, guardian or employee.
type Complaint struct {
	ID         string          `db:"id" json:"id"`
	CampusID   string          `db:"campus_id" json:"campus_id"`
	FiledByID  string          `db:"filed_by_id" json:"filed_by_id"`
	Subject    string          `db:"subject" json:"subject"`
	Body       string          `db:"body" json:"body"`
	Status     ComplaintStatus `db:"status" json:"status"`
	Resolution *string         `db:"resolution" json:"resolution,omitempty"`
	ResolvedAt *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ComplaintFilter scopes complaint listings.
type ComplaintFilter struct {
	Status    *ComplaintStatus
	FiledByID string
	Page      int
	PageSize  int
}

// Todo is a personal task item for a user.
type Todo struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Title     string     `db:"title" json:"title"`
	Done      bool       `db:"done" json:"done"`
	DueAt     *time.Time `db:"due_at" json:"due_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
