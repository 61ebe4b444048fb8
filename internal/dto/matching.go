package dto

import (
	"time"

	"github.com/noah-isme/drivematch-api/internal/models"
)

// MatchingRequest configures one matching pass.
type MatchingRequest struct {
	LicenseTypes                  []string `json:"licenseTypes" validate:"required,min=1,dive,required"`
	ConsiderGender                bool     `json:"considerGender"`
	PrioritizeFirstDrivingAttempt bool     `json:"prioritizeFirstDrivingAttempt"`
}

// RunMatchingRequest adds the optional roster selection made by the operator.
type RunMatchingRequest struct {
	MatchingRequest
	SelectedStudentIDs    []string `json:"selectedStudentIds" validate:"omitempty,dive,required"`
	SelectedInstructorIDs []string `json:"selectedInstructorIds" validate:"omitempty,dive,required"`
}

// MatchingResult is one student-instructor pairing with a snapshot of exam progress at match time.
type MatchingResult struct {
	StudentID           string            `json:"studentId"`
	InstructorID        string            `json:"instructorId"`
	StudentName         string            `json:"studentName"`
	StudentGender       models.Gender     `json:"studentGender"`
	StudentStatus       string            `json:"studentStatus"`
	InstructorName      string            `json:"instructorName"`
	InstructorGender    models.Gender     `json:"instructorGender"`
	LicenseType         string            `json:"licenseType"`
	VehiclePlate        *string           `json:"vehiclePlate,omitempty"`
	VehicleModel        *string           `json:"vehicleModel,omitempty"`
	MatchedAt           time.Time         `json:"matchedAt"`
	WrittenExamAttempts int               `json:"writtenExamAttempts"`
	WrittenExamStatus   models.ExamStatus `json:"writtenExamStatus"`
	DrivingExamAttempts int               `json:"drivingExamAttempts"`
	DrivingExamStatus   models.ExamStatus `json:"drivingExamStatus"`
}

// MatchingError explains why an eligible student was left unmatched.
type MatchingError struct {
	StudentID   string                     `json:"studentId,omitempty"`
	StudentName string                     `json:"studentName,omitempty"`
	Reason      models.MatchingErrorReason `json:"reason"`
	Details     string                     `json:"details"`
}

// InstructorUtilization summarises one instructor's load after a run.
type InstructorUtilization struct {
	InstructorID    string        `json:"instructorId"`
	Name            string        `json:"name"`
	CurrentStudents int           `json:"currentStudents"`
	NewAssignments  int           `json:"newAssignments"`
	Utilization     int           `json:"utilization"`
	LicenseTypes    []string      `json:"licenseTypes"`
	Gender          models.Gender `json:"gender"`
}

// MatchingStats summarises a run.
type MatchingStats struct {
	TotalStudents         int                     `json:"totalStudents"`
	TotalInstructors      int                     `json:"totalInstructors"`
	MatchedStudents       int                     `json:"matchedStudents"`
	UnmatchedStudents     int                     `json:"unmatchedStudents"`
	InstructorUtilization []InstructorUtilization `json:"instructorUtilization"`
}

// MatchingResponse is the full engine output.
type MatchingResponse struct {
	Matches []MatchingResult `json:"matches"`
	Errors  []MatchingError  `json:"errors"`
	Stats   MatchingStats    `json:"stats"`
}

// MatchingRunResponse returns a persisted run with its computed outcome.
type MatchingRunResponse struct {
	Run    models.MatchingRun       `json:"run"`
	Items  []models.MatchingRunItem `json:"items"`
	Errors []MatchingError          `json:"errors"`
	Stats  *MatchingStats           `json:"stats,omitempty"`
}

// MatchingRunQuery filters run listings.
type MatchingRunQuery struct {
	Status   []models.MatchingRunStatus
	Page     int
	PageSize int
}

// ApplyMatchingRunResponse reports assignments written when applying a run.
type ApplyMatchingRunResponse struct {
	RunID   string   `json:"runId"`
	Applied int      `json:"applied"`
	Skipped []string `json:"skipped"`
}

// MatchingRunExport is a rendered download of a run's pairings.
type MatchingRunExport struct {
	Filename    string
	ContentType string
	Content     []byte
}
