package dto

import (
	"time"

	"github.com/noah-isme/drivematch-api/internal/models"
)

// InstructorPerformanceQuery selects the reporting window.
type InstructorPerformanceQuery struct {
	PeriodStart time.Time `validate:"required"`
	PeriodEnd   time.Time `validate:"required,gtfield=PeriodStart"`
}

// InstructorPerformance is one ranked row of the performance report.
type InstructorPerformance struct {
	InstructorID        string                `json:"instructorId"`
	Name                string                `json:"name"`
	TotalStudents       int                   `json:"totalStudents"`
	PassedStudents      int                   `json:"passedStudents"`
	SuccessRate         int                   `json:"successRate"`
	PreviousSuccessRate *int                  `json:"previousSuccessRate,omitempty"`
	Trend               models.TrendDirection `json:"trend"`
}

// InstructorPerformanceReport wraps the ranked rows with the windows compared.
type InstructorPerformanceReport struct {
	PeriodStart         time.Time               `json:"periodStart"`
	PeriodEnd           time.Time               `json:"periodEnd"`
	PreviousPeriodStart time.Time               `json:"previousPeriodStart"`
	PreviousPeriodEnd   time.Time               `json:"previousPeriodEnd"`
	Instructors         []InstructorPerformance `json:"instructors"`
}
