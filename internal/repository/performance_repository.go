package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/drivematch-api/internal/models"
)

// PerformanceRepository aggregates historical assignment outcomes.
type PerformanceRepository struct {
	db *sqlx.DB
}

// NewPerformanceRepository constructs a PerformanceRepository.
func NewPerformanceRepository(db *sqlx.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

const instructorSummaryQuery = `SELECT i.id AS instructor_id, i.full_name AS instructor_name,
        COUNT(DISTINCT a.student_id) AS total_students,
        COUNT(DISTINCT a.student_id) FILTER (WHERE s.written_exam_status = $4 AND s.driving_exam_status = $4) AS passed_students
        FROM student_instructor_assignments a
        JOIN instructors i ON i.id = a.instructor_id
        JOIN students s ON s.id = a.student_id
        WHERE i.company_id = $1 AND a.assigned_at >= $2 AND a.assigned_at < $3
        GROUP BY i.id, i.full_name
        ORDER BY i.full_name ASC`

// SummaryByInstructor counts students assigned within [start, end) and how many passed both exams.
func (r *PerformanceRepository) SummaryByInstructor(ctx context.Context, companyID string, start, end time.Time) ([]models.InstructorPeriodSummary, error) {
	var rows []models.InstructorPeriodSummary
	if err := r.db.SelectContext(ctx, &rows, instructorSummaryQuery, companyID, start, end, models.ExamStatusPassed); err != nil {
		return nil, fmt.Errorf("summarise instructor performance: %w", err)
	}
	return rows, nil
}
