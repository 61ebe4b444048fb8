package models

import "time"

// Gender is shared by students and instructors.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// StudentStatus captures where a student is in their training.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusInactive  StudentStatus = "inactive"
	StudentStatusCompleted StudentStatus = "completed"
	StudentStatusFailed    StudentStatus = "failed"
)

// ExamStatus is the outcome of a written or driving exam.
type ExamStatus string

const (
	ExamStatusNotTaken ExamStatus = "not-taken"
	ExamStatusPassed   ExamStatus = "passed"
	ExamStatusFailed   ExamStatus = "failed"
)

// ExamRecord tracks attempts for one exam type.
type ExamRecord struct {
	Status      ExamStatus `db:"status" json:"status"`
	Attempts    int        `db:"attempts" json:"attempts"`
	MaxAttempts int        `db:"max_attempts" json:"maxAttempts"`
}

// Student represents a driving-school learner as seen by the matching engine.
type Student struct {
	ID          string        `db:"id" json:"id"`
	CompanyID   string        `db:"company_id" json:"companyId"`
	FullName    string        `db:"full_name" json:"fullName"`
	Gender      Gender        `db:"gender" json:"gender"`
	LicenseType string        `db:"license_type" json:"licenseType"`
	Status      StudentStatus `db:"status" json:"status"`
	WrittenExam ExamRecord    `db:"written_exam" json:"writtenExam"`
	DrivingExam ExamRecord    `db:"driving_exam" json:"drivingExam"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`

	Assignments []StudentInstructorAssignment `db:"-" json:"assignments,omitempty"`
}

// HasActiveAssignment reports whether any instructor assignment is still active.
func (s Student) HasActiveAssignment() bool {
	for _, a := range s.Assignments {
		if a.IsActive {
			return true
		}
	}
	return false
}

// StudentInstructorAssignment links a student to an instructor.
type StudentInstructorAssignment struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"studentId"`
	InstructorID  string     `db:"instructor_id" json:"instructorId"`
	MatchingRunID *string    `db:"matching_run_id" json:"matchingRunId,omitempty"`
	IsActive      bool       `db:"is_active" json:"isActive"`
	AssignedAt    time.Time  `db:"assigned_at" json:"assignedAt"`
	EndedAt       *time.Time `db:"ended_at" json:"endedAt,omitempty"`
}
