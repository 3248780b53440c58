package models

import "time"

type AssignmentStatus string

const (
	Submitted AssignmentStatus = "submitted"
	Approved  AssignmentStatus = "approved"
	Rejected  AssignmentStatus = "rejected"
)

// Final: статусы, при которых оценка считается окончательной.
func (s AssignmentStatus) Final() bool { return s == Approved }

type Assignment struct {
	ID           int64            `db:"id"`
	UserID       int64            `db:"user_id"`
	Week         int              `db:"week"`
	FileRef      string           `db:"file_ref"`
	OriginalName string           `db:"original_name"`
	SubmittedAt  time.Time        `db:"submitted_at"`
	Status       AssignmentStatus `db:"status"`
	Grade        *float64         `db:"grade"`
	Feedback     *string          `db:"feedback"`
	ReviewedAt   *time.Time       `db:"reviewed_at"`
	ReviewedBy   *int64           `db:"reviewed_by"`
}

// AssignmentWithUser: строка очереди проверки для админа.
type AssignmentWithUser struct {
	Assignment
	Username string `db:"username"`
	Cohort   string `db:"cohort"`
}

// WeekResult: оценка за неделю с бейджем.
type WeekResult struct {
	Week   int              `db:"week"`
	Status AssignmentStatus `db:"status"`
	Grade  *float64         `db:"grade"`
	Badge  string
}
