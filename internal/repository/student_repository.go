package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/drivematch-api/internal/models"
)

// StudentRepository reads student rosters for matching.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentRosterQuery = `SELECT s.id, s.company_id, s.full_name, s.gender, s.license_type, s.status,
        s.written_exam_status AS "written_exam.status", s.written_exam_attempts AS "written_exam.attempts", s.written_exam_max_attempts AS "written_exam.max_attempts",
        s.driving_exam_status AS "driving_exam.status", s.driving_exam_attempts AS "driving_exam.attempts", s.driving_exam_max_attempts AS "driving_exam.max_attempts",
        s.created_at
        FROM students s
        WHERE s.company_id = $1 AND s.license_type = ANY($2)
        ORDER BY s.created_at ASC, s.id ASC`

// ListForMatching returns the company's students holding any of the license types, with
// their active instructor assignments attached.
func (r *StudentRepository) ListForMatching(ctx context.Context, companyID string, licenseTypes []string) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, studentRosterQuery, companyID, pq.Array(licenseTypes)); err != nil {
		return nil, fmt.Errorf("list students for matching: %w", err)
	}
	if len(students) == 0 {
		return students, nil
	}

	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	assignments, err := listActiveAssignments(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string][]models.StudentInstructorAssignment, len(assignments))
	for _, a := range assignments {
		byStudent[a.StudentID] = append(byStudent[a.StudentID], a)
	}
	for i := range students {
		students[i].Assignments = byStudent[students[i].ID]
	}
	return students, nil
}
