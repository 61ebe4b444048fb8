package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/drivematch-api/internal/models"
)

// MatchingRunRepository persists matching runs and their items.
type MatchingRunRepository struct {
	db *sqlx.DB
}

// NewMatchingRunRepository constructs a MatchingRunRepository.
func NewMatchingRunRepository(db *sqlx.DB) *MatchingRunRepository {
	return &MatchingRunRepository{db: db}
}

const matchingRunColumns = `id, company_id, license_types, consider_gender, prioritize_first_driving_attempt, status,
        matched_count, unmatched_count, stats, errors, created_by, created_at, updated_by, applied_at, cancelled_at, archived_at`

const matchingRunItemColumns = `id, run_id, student_id, instructor_id, student_name, student_gender, student_status,
        instructor_name, instructor_gender, license_type, vehicle_plate, vehicle_model,
        written_exam_attempts, written_exam_status, driving_exam_attempts, driving_exam_status, matched_at`

func (r *MatchingRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a run header.
func (r *MatchingRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.MatchingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.MatchingRunStatusPending
	}
	const query = `INSERT INTO matching_runs (id, company_id, license_types, consider_gender, prioritize_first_driving_attempt, status, matched_count, unmatched_count, stats, errors, created_by, created_at)
        VALUES (:id, :company_id, :license_types, :consider_gender, :prioritize_first_driving_attempt, :status, :matched_count, :unmatched_count, :stats, :errors, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, run); err != nil {
		return fmt.Errorf("create matching run: %w", err)
	}
	return nil
}

// CreateItems inserts the pairings of a run.
func (r *MatchingRunRepository) CreateItems(ctx context.Context, exec sqlx.ExtContext, items []models.MatchingRunItem) error {
	target := r.exec(exec)
	const query = `INSERT INTO matching_run_items (` + matchingRunItemColumns + `)
        VALUES (:id, :run_id, :student_id, :instructor_id, :student_name, :student_gender, :student_status,
        :instructor_name, :instructor_gender, :license_type, :vehicle_plate, :vehicle_model,
        :written_exam_attempts, :written_exam_status, :driving_exam_attempts, :driving_exam_status, :matched_at)`
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, item); err != nil {
			return fmt.Errorf("create matching run item: %w", err)
		}
	}
	return nil
}

// FindByID fetches a run scoped to a company.
func (r *MatchingRunRepository) FindByID(ctx context.Context, companyID, id string) (*models.MatchingRun, error) {
	query := `SELECT ` + matchingRunColumns + ` FROM matching_runs WHERE id = $1 AND company_id = $2`
	var run models.MatchingRun
	if err := r.db.GetContext(ctx, &run, query, id, companyID); err != nil {
		return nil, err
	}
	return &run, nil
}

// LockByID fetches a run and holds its row lock until the transaction ends.
func (r *MatchingRunRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, companyID, id string) (*models.MatchingRun, error) {
	query := `SELECT ` + matchingRunColumns + ` FROM matching_runs WHERE id = $1 AND company_id = $2 FOR UPDATE`
	var run models.MatchingRun
	if err := sqlx.GetContext(ctx, r.exec(exec), &run, query, id, companyID); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs for a company, newest first.
func (r *MatchingRunRepository) List(ctx context.Context, filter models.MatchingRunFilter) ([]models.MatchingRun, int, error) {
	conditions := []string{"company_id = $1"}
	args := []interface{}{filter.CompanyID}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM matching_runs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", matchingRunColumns, where, size, offset)
	var runs []models.MatchingRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list matching runs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM matching_runs WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count matching runs: %w", err)
	}
	return runs, total, nil
}

// ListItems returns the pairings of a run.
func (r *MatchingRunRepository) ListItems(ctx context.Context, runID string) ([]models.MatchingRunItem, error) {
	query := `SELECT ` + matchingRunItemColumns + ` FROM matching_run_items WHERE run_id = $1 ORDER BY matched_at ASC, student_name ASC`
	var items []models.MatchingRunItem
	if err := r.db.SelectContext(ctx, &items, query, runID); err != nil {
		return nil, fmt.Errorf("list matching run items: %w", err)
	}
	return items, nil
}

// UpdateStatus moves a run to status and stamps the matching timestamp column.
func (r *MatchingRunRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.MatchingRunStatus, actorID string, at time.Time) error {
	var column string
	switch status {
	case models.MatchingRunStatusApplied:
		column = "applied_at"
	case models.MatchingRunStatusCancelled:
		column = "cancelled_at"
	case models.MatchingRunStatusArchived:
		column = "archived_at"
	default:
		return fmt.Errorf("update matching run status: unsupported status %s", status)
	}
	query := fmt.Sprintf("UPDATE matching_runs SET status = $1, updated_by = $2, %s = $3 WHERE id = $4", column)
	res, err := r.exec(exec).ExecContext(ctx, query, status, actorID, at, id)
	if err != nil {
		return fmt.Errorf("update matching run status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ArchivePendingBefore archives pending runs created before cutoff and returns how many moved.
func (r *MatchingRunRepository) ArchivePendingBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	const query = `UPDATE matching_runs SET status = $1, archived_at = $2 WHERE status = $3 AND created_at < $4`
	res, err := r.db.ExecContext(ctx, query, models.MatchingRunStatusArchived, at, models.MatchingRunStatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive pending matching runs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive pending matching runs: %w", err)
	}
	return affected, nil
}
