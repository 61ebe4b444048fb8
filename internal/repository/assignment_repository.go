package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/drivematch-api/internal/models"
)

// AssignmentRepository persists student-instructor assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts assignments, filling ids and timestamps when missing.
func (r *AssignmentRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.StudentInstructorAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO student_instructor_assignments (id, student_id, instructor_id, matching_run_id, is_active, assigned_at)
        VALUES (:id, :student_id, :instructor_id, :matching_run_id, :is_active, :assigned_at)`
	for i := range assignments {
		a := &assignments[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.AssignedAt.IsZero() {
			a.AssignedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, a); err != nil {
			return fmt.Errorf("create student assignment: %w", err)
		}
	}
	return nil
}

// LockStudents takes row locks on the given students for the rest of the transaction, so
// concurrent applies touching the same student serialize before checking active assignments.
// Rows are locked in id order.
func (r *AssignmentRepository) LockStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	const query = `SELECT id FROM students WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	var locked []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &locked, query, pq.Array(studentIDs)); err != nil {
		return fmt.Errorf("lock students: %w", err)
	}
	return nil
}

// ActiveStudentIDs returns which of the given students already hold an active assignment.
func (r *AssignmentRepository) ActiveStudentIDs(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) (map[string]struct{}, error) {
	assignments, err := listActiveAssignments(ctx, r.exec(exec), studentIDs)
	if err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		active[a.StudentID] = struct{}{}
	}
	return active, nil
}

func listActiveAssignments(ctx context.Context, q sqlx.QueryerContext, studentIDs []string) ([]models.StudentInstructorAssignment, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, student_id, instructor_id, matching_run_id, is_active, assigned_at, ended_at
        FROM student_instructor_assignments WHERE student_id = ANY($1) AND is_active = true`
	var assignments []models.StudentInstructorAssignment
	if err := sqlx.SelectContext(ctx, q, &assignments, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return assignments, nil
}
