package models

// TrendDirection compares a success rate against the prior period.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// InstructorPeriodSummary aggregates assigned and passed students for one instructor in a window.
type InstructorPeriodSummary struct {
	InstructorID   string `db:"instructor_id" json:"instructorId"`
	InstructorName string `db:"instructor_name" json:"instructorName"`
	TotalStudents  int    `db:"total_students" json:"totalStudents"`
	PassedStudents int    `db:"passed_students" json:"passedStudents"`
}
