package models

import "time"

// Student represents a learner registered at a campus. Students are never
// hard-deleted; leaving school flips the HasLeft flag.
type Student struct {
	ID                    string     `db:"id" json:"id"`
	CampusID              string     `db:"campus_id" json:"campus_id"`
	RegistrationNo        string     `db:"registration_no" json:"registration_no"`
	FullName              string     `db:"full_name" json:"full_name"`
	GuardianName          *string    `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone         *string    `db:"guardian_phone" json:"guardian_phone,omitempty"`
	ClassID               string     `db:"class_id" json:"class_id"`
	SectionID             *string    `db:"section_id" json:"section_id,omitempty"`
	AdmissionFeePaid      bool       `db:"admission_fee_paid" json:"admission_fee_paid"`
	TuitionDiscountPct    float64    `db:"tuition_discount_pct" json:"tuition_discount_pct"`
	AdmissionDiscountPct  float64    `db:"admission_discount_pct" json:"admission_discount_pct"`
	RegisteredAt          time.Time  `db:"registered_at" json:"registered_at"`
	HasLeft               bool       `db:"has_left" json:"has_left"`
	LeftAt                *time.Time `db:"left_at" json:"left_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures listing criteria.
type StudentFilter struct {
	ClassID   string
	SectionID string
	HasLeft   *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SchoolClass is a teaching class within a campus.
type SchoolClass struct {
	ID        string    `db:"id" json:"id"`
	CampusID  string    `db:"campus_id" json:"campus_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Section subdivides a class.
type Section struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
