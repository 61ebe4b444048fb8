package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// MatchingErrorReason classifies why an eligible student was not matched.
type MatchingErrorReason string

const (
	ReasonNoSuitableInstructor MatchingErrorReason = "NO_SUITABLE_INSTRUCTOR"
	ReasonInstructorFull       MatchingErrorReason = "INSTRUCTOR_FULL"
	// ReasonLicenseTypeMismatch and ReasonGenderMismatch are reserved for stricter
	// validation modes; the default allocator never emits them.
	ReasonLicenseTypeMismatch MatchingErrorReason = "LICENSE_TYPE_MISMATCH"
	ReasonGenderMismatch      MatchingErrorReason = "GENDER_MISMATCH"
	ReasonNoEligibleStudents  MatchingErrorReason = "NO_ELIGIBLE_STUDENTS"
)

// MatchingRunStatus is the lifecycle state of a persisted matching run.
type MatchingRunStatus string

const (
	MatchingRunStatusPending   MatchingRunStatus = "PENDING"
	MatchingRunStatusApplied   MatchingRunStatus = "APPLIED"
	MatchingRunStatusCancelled MatchingRunStatus = "CANCELLED"
	MatchingRunStatusArchived  MatchingRunStatus = "ARCHIVED"
)

// CanTransitionTo reports whether the run may move to next. Only pending runs move.
func (s MatchingRunStatus) CanTransitionTo(next MatchingRunStatus) bool {
	if s != MatchingRunStatusPending {
		return false
	}
	switch next {
	case MatchingRunStatusApplied, MatchingRunStatusCancelled, MatchingRunStatusArchived:
		return true
	default:
		return false
	}
}

// MatchingRun stores the outcome of one matching pass awaiting application.
type MatchingRun struct {
	ID                            string            `db:"id" json:"id"`
	CompanyID                     string            `db:"company_id" json:"companyId"`
	LicenseTypes                  pq.StringArray    `db:"license_types" json:"licenseTypes"`
	ConsiderGender                bool              `db:"consider_gender" json:"considerGender"`
	PrioritizeFirstDrivingAttempt bool              `db:"prioritize_first_driving_attempt" json:"prioritizeFirstDrivingAttempt"`
	Status                        MatchingRunStatus `db:"status" json:"status"`
	MatchedCount                  int               `db:"matched_count" json:"matchedCount"`
	UnmatchedCount                int               `db:"unmatched_count" json:"unmatchedCount"`
	Stats                         types.JSONText    `db:"stats" json:"stats"`
	Errors                        types.JSONText    `db:"errors" json:"errors"`
	CreatedBy                     string            `db:"created_by" json:"createdBy"`
	CreatedAt                     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedBy                     *string           `db:"updated_by" json:"updatedBy,omitempty"`
	AppliedAt                     *time.Time        `db:"applied_at" json:"appliedAt,omitempty"`
	CancelledAt                   *time.Time        `db:"cancelled_at" json:"cancelledAt,omitempty"`
	ArchivedAt                    *time.Time        `db:"archived_at" json:"archivedAt,omitempty"`
}

// MatchingRunItem is one persisted student-instructor pairing of a run.
type MatchingRunItem struct {
	ID                  string     `db:"id" json:"id"`
	RunID               string     `db:"run_id" json:"runId"`
	StudentID           string     `db:"student_id" json:"studentId"`
	InstructorID        string     `db:"instructor_id" json:"instructorId"`
	StudentName         string     `db:"student_name" json:"studentName"`
	StudentGender       Gender     `db:"student_gender" json:"studentGender"`
	StudentStatus       string     `db:"student_status" json:"studentStatus"`
	InstructorName      string     `db:"instructor_name" json:"instructorName"`
	InstructorGender    Gender     `db:"instructor_gender" json:"instructorGender"`
	LicenseType         string     `db:"license_type" json:"licenseType"`
	VehiclePlate        *string    `db:"vehicle_plate" json:"vehiclePlate,omitempty"`
	VehicleModel        *string    `db:"vehicle_model" json:"vehicleModel,omitempty"`
	WrittenExamAttempts int        `db:"written_exam_attempts" json:"writtenExamAttempts"`
	WrittenExamStatus   ExamStatus `db:"written_exam_status" json:"writtenExamStatus"`
	DrivingExamAttempts int        `db:"driving_exam_attempts" json:"drivingExamAttempts"`
	DrivingExamStatus   ExamStatus `db:"driving_exam_status" json:"drivingExamStatus"`
	MatchedAt           time.Time  `db:"matched_at" json:"matchedAt"`
}

// MatchingRunFilter constrains run listing queries.
type MatchingRunFilter struct {
	CompanyID string
	Status    []MatchingRunStatus
	Page      int
	PageSize  int
}
