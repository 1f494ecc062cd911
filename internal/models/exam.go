package models

import "time"

// MarkStatus is the derived pass/fail state of a mark entry.
type MarkStatus string

const (
	MarkPass MarkStatus = "PASS"
	MarkFail MarkStatus = "FAIL"
)

// Valid reports whether the status is a supported value.
func (s MarkStatus) Valid() bool {
	return s == MarkPass || s == MarkFail
}

// Exam is a named examination within an academic year.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	CampusID  string    `db:"campus_id" json:"campus_id"`
	Name      string    `db:"name" json:"name"`
	YearStart int       `db:"year_start" json:"year_start"`
	HeldAt    time.Time `db:"held_at" json:"held_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Subject is a taught subject.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	CampusID  string    `db:"campus_id" json:"campus_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExamMark is one mark entry, unique per (student, exam, subject, academic
// year start). Re-entry updates the existing row. Status, grade and
// percentage are derived, never supplied.
type ExamMark struct {
	ID            string     `db:"id" json:"id"`
	CampusID      string     `db:"campus_id" json:"campus_id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	ExamID        string     `db:"exam_id" json:"exam_id"`
	SubjectID     string     `db:"subject_id" json:"subject_id"`
	YearStart     int        `db:"year_start" json:"year_start"`
	ObtainedMarks float64    `db:"obtained_marks" json:"obtained_marks"`
	TotalMarks    float64    `db:"total_marks" json:"total_marks"`
	PassingMarks  float64    `db:"passing_marks" json:"passing_marks"`
	Status        MarkStatus `db:"status" json:"status"`
	Grade         string     `db:"grade" json:"grade"`
	Percentage    float64    `db:"percentage" json:"percentage"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ExamMarkRow extends a mark with display metadata for reports.
type ExamMarkRow struct {
	ExamMark
	StudentName string  `db:"student_name" json:"student_name"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	ClassID     string  `db:"class_id" json:"class_id"`
	SectionID   *string `db:"section_id" json:"section_id,omitempty"`
}

// ExamMarkFilter scopes analysis queries. Breakdown dimensions are only
// computed for dimensions the filter leaves unpinned.
type ExamMarkFilter struct {
	ExamID    string
	SubjectID string
	ClassID   string
	SectionID string
	StudentID string
	YearStart int
}

// GroupStat is one aggregate bucket in an analysis breakdown.
type GroupStat struct {
	Key           string  `db:"key" json:"key"`
	Label         string  `db:"label" json:"label"`
	Count         int     `db:"count" json:"count"`
	AveragePct    float64 `db:"average_pct" json:"average_pct"`
	PassRate      float64 `db:"pass_rate" json:"pass_rate"`
	TotalObtained float64 `db:"total_obtained" json:"total_obtained"`
}

// StudentRanking is one row of a class exam ranking. Order: percentage
// descending, then total obtained descending, ties by insertion order.
type StudentRanking struct {
	Rank          int     `json:"rank"`
	StudentID     string  `json:"student_id"`
	StudentName   string  `json:"student_name"`
	TotalObtained float64 `json:"total_obtained"`
	TotalMarks    float64 `json:"total_marks"`
	Percentage    float64 `json:"percentage"`
	Subjects      int     `json:"subjects"`
	Fails         int     `json:"fails"`
}

// ExamAnalysis is the aggregate view over a set of mark entries.
type ExamAnalysis struct {
	Count           int     `json:"count"`
	AverageObtained float64 `json:"average_obtained"`
	AveragePct      float64 `json:"average_pct"`
	PassRate        float64 `json:"pass_rate"`

	// Breakdowns present only when their dimension is not pinned.
	BySubject []GroupStat `json:"by_subject,omitempty"`
	BySection []GroupStat `json:"by_section,omitempty"`
	ByClass   []GroupStat `json:"by_class,omitempty"`
	ByCampus  []GroupStat `json:"by_campus,omitempty"`
}
