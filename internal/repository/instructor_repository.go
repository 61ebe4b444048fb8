package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/drivematch-api/internal/models"
)

// InstructorRepository reads instructor rosters.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs an InstructorRepository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

const instructorRosterQuery = `SELECT i.id, i.company_id, i.full_name, i.gender, i.status, i.license_types, i.vehicle_plate, i.vehicle_model,
        (SELECT COUNT(*) FROM student_instructor_assignments a WHERE a.instructor_id = i.id AND a.is_active = true) AS current_students
        FROM instructors i
        WHERE i.company_id = $1 AND i.license_types && $2
        ORDER BY i.created_at ASC, i.id ASC`

// ListForMatching returns the company's instructors teaching any of the license types,
// with the count of their active assignments.
func (r *InstructorRepository) ListForMatching(ctx context.Context, companyID string, licenseTypes []string) ([]models.Instructor, error) {
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, instructorRosterQuery, companyID, pq.Array(licenseTypes)); err != nil {
		return nil, fmt.Errorf("list instructors for matching: %w", err)
	}
	return instructors, nil
}
