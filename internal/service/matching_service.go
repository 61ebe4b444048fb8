package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
	"github.com/noah-isme/drivematch-api/pkg/jobs"
)

// JobTypePerformanceRefresh drops cached performance reports after assignments change.
const JobTypePerformanceRefresh = "performance_refresh"

type studentRoster interface {
	ListForMatching(ctx context.Context, companyID string, licenseTypes []string) ([]models.Student, error)
}

type instructorRoster interface {
	ListForMatching(ctx context.Context, companyID string, licenseTypes []string) ([]models.Instructor, error)
}

type matchingRunStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.MatchingRun) error
	CreateItems(ctx context.Context, exec sqlx.ExtContext, items []models.MatchingRunItem) error
	FindByID(ctx context.Context, companyID, id string) (*models.MatchingRun, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, companyID, id string) (*models.MatchingRun, error)
	List(ctx context.Context, filter models.MatchingRunFilter) ([]models.MatchingRun, int, error)
	ListItems(ctx context.Context, runID string) ([]models.MatchingRunItem, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.MatchingRunStatus, actorID string, at time.Time) error
	ArchivePendingBefore(ctx context.Context, cutoff, at time.Time) (int64, error)
}

type assignmentWriter interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.StudentInstructorAssignment) error
	LockStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) error
	ActiveStudentIDs(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) (map[string]struct{}, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// MatchingServiceConfig governs matching orchestration.
type MatchingServiceConfig struct {
	Enabled      bool
	MaxRosterLen int
	PendingTTL   time.Duration
}

// MatchingService loads rosters, runs the engine and manages the matching run lifecycle.
type MatchingService struct {
	students    studentRoster
	instructors instructorRoster
	runs        matchingRunStore
	assignments assignmentWriter
	tx          txProvider
	engine      *MatchingEngine
	queue       jobEnqueuer
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         MatchingServiceConfig
	now         func() time.Time
}

// NewMatchingService wires matching dependencies.
func NewMatchingService(
	students studentRoster,
	instructors instructorRoster,
	runs matchingRunStore,
	assignments assignmentWriter,
	tx txProvider,
	engine *MatchingEngine,
	queue jobEnqueuer,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg MatchingServiceConfig,
) *MatchingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewMatchingEngine(MatchingEngineConfig{}, validate)
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 72 * time.Hour
	}
	return &MatchingService{
		students:    students,
		instructors: instructors,
		runs:        runs,
		assignments: assignments,
		tx:          tx,
		engine:      engine,
		queue:       queue,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Preview runs the engine against current rosters without persisting anything.
func (s *MatchingService) Preview(ctx context.Context, companyID string, req dto.RunMatchingRequest) (*dto.MatchingResponse, error) {
	return s.match(ctx, companyID, req, MatchingModePreview)
}

// Run matches and stores the outcome as a pending run.
func (s *MatchingService) Run(ctx context.Context, companyID, actorID string, req dto.RunMatchingRequest) (*dto.MatchingRunResponse, error) {
	resp, err := s.match(ctx, companyID, req, MatchingModeRun)
	if err != nil {
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	statsPayload, marshalErr := json.Marshal(resp.Stats)
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode matching stats")
	}
	errorsPayload, marshalErr := json.Marshal(resp.Errors)
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode matching errors")
	}

	run := models.MatchingRun{
		ID:                            uuid.NewString(),
		CompanyID:                     companyID,
		LicenseTypes:                  trimCodes(req.LicenseTypes),
		ConsiderGender:                req.ConsiderGender,
		PrioritizeFirstDrivingAttempt: req.PrioritizeFirstDrivingAttempt,
		Status:                        models.MatchingRunStatusPending,
		MatchedCount:                  len(resp.Matches),
		UnmatchedCount:                resp.Stats.UnmatchedStudents,
		Stats:                         types.JSONText(statsPayload),
		Errors:                        types.JSONText(errorsPayload),
		CreatedBy:                     actorID,
		CreatedAt:                     s.now().UTC(),
	}
	items := make([]models.MatchingRunItem, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		items = append(items, runItemFromMatch(run.ID, match))
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.runs.Create(ctx, tx, &run); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create matching run")
		return nil, err
	}
	if err = s.runs.CreateItems(ctx, tx, items); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store matching run items")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit matching run")
		return nil, err
	}

	s.metrics.RecordRunTransition(models.MatchingRunStatusPending, 1)
	s.logger.Info("matching run created",
		zap.String("run_id", run.ID),
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
		zap.Int("matched", run.MatchedCount),
		zap.Int("unmatched", run.UnmatchedCount),
	)
	return &dto.MatchingRunResponse{Run: run, Items: items, Errors: resp.Errors, Stats: &resp.Stats}, nil
}

// Apply writes the run's pairings as active assignments. Students that gained an active
// assignment since the run was computed are skipped.
func (s *MatchingService) Apply(ctx context.Context, companyID, runID, actorID string) (*dto.ApplyMatchingRunResponse, error) {
	if runID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "run id is required")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var run *models.MatchingRun
	if run, err = s.lockPending(ctx, tx, companyID, runID, models.MatchingRunStatusApplied); err != nil {
		return nil, err
	}

	var items []models.MatchingRunItem
	if items, err = s.runs.ListItems(ctx, run.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matching run items")
		return nil, err
	}
	studentIDs := make([]string, 0, len(items))
	for _, item := range items {
		studentIDs = append(studentIDs, item.StudentID)
	}

	if err = s.assignments.LockStudents(ctx, tx, studentIDs); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock matched students")
		return nil, err
	}
	var active map[string]struct{}
	if active, err = s.assignments.ActiveStudentIDs(ctx, tx, studentIDs); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active assignments")
		return nil, err
	}

	now := s.now().UTC()
	result := &dto.ApplyMatchingRunResponse{RunID: run.ID, Skipped: []string{}}
	records := make([]models.StudentInstructorAssignment, 0, len(items))
	for _, item := range items {
		if _, taken := active[item.StudentID]; taken {
			result.Skipped = append(result.Skipped, item.StudentID)
			continue
		}
		records = append(records, models.StudentInstructorAssignment{
			StudentID:     item.StudentID,
			InstructorID:  item.InstructorID,
			MatchingRunID: &run.ID,
			IsActive:      true,
			AssignedAt:    now,
		})
	}

	if err = s.assignments.CreateBatch(ctx, tx, records); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignments")
		return nil, err
	}
	if err = s.runs.UpdateStatus(ctx, tx, run.ID, models.MatchingRunStatusApplied, actorID, now); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark matching run applied")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit matching run")
		return nil, err
	}
	result.Applied = len(records)

	s.metrics.RecordRunTransition(models.MatchingRunStatusApplied, 1)
	s.logger.Info("matching run applied",
		zap.String("run_id", run.ID),
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", len(result.Skipped)),
	)
	s.enqueueRefresh(companyID, run.ID)
	return result, nil
}

// Cancel discards a pending run.
func (s *MatchingService) Cancel(ctx context.Context, companyID, runID, actorID string) (*models.MatchingRun, error) {
	if runID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "run id is required")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var run *models.MatchingRun
	if run, err = s.lockPending(ctx, tx, companyID, runID, models.MatchingRunStatusCancelled); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err = s.runs.UpdateStatus(ctx, tx, run.ID, models.MatchingRunStatusCancelled, actorID, now); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel matching run")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit matching run")
		return nil, err
	}

	run.Status = models.MatchingRunStatusCancelled
	run.CancelledAt = &now
	run.UpdatedBy = &actorID
	s.metrics.RecordRunTransition(models.MatchingRunStatusCancelled, 1)
	s.logger.Info("matching run cancelled", zap.String("run_id", run.ID), zap.String("actor_id", actorID))
	return run, nil
}

// Get returns a run with its items and decoded outcome.
func (s *MatchingService) Get(ctx context.Context, companyID, runID string) (*dto.MatchingRunResponse, error) {
	run, err := s.runs.FindByID(ctx, companyID, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "matching run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matching run")
	}
	items, err := s.runs.ListItems(ctx, run.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matching run items")
	}
	if items == nil {
		items = []models.MatchingRunItem{}
	}

	resp := &dto.MatchingRunResponse{Run: *run, Items: items, Errors: []dto.MatchingError{}}
	if len(run.Errors) > 0 {
		if err := run.Errors.Unmarshal(&resp.Errors); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode matching errors")
		}
	}
	if len(run.Stats) > 0 {
		var stats dto.MatchingStats
		if err := run.Stats.Unmarshal(&stats); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode matching stats")
		}
		resp.Stats = &stats
	}
	return resp, nil
}

// List returns runs for the company, newest first.
func (s *MatchingService) List(ctx context.Context, companyID string, query dto.MatchingRunQuery) ([]models.MatchingRun, *models.Pagination, error) {
	for _, status := range query.Status {
		switch status {
		case models.MatchingRunStatusPending, models.MatchingRunStatusApplied, models.MatchingRunStatusCancelled, models.MatchingRunStatusArchived:
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown matching run status %q", status))
		}
	}
	filter := models.MatchingRunFilter{CompanyID: companyID, Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list matching runs")
	}
	if runs == nil {
		runs = []models.MatchingRun{}
	}
	return runs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ArchiveStale archives pending runs older than olderThan, or the configured TTL when not positive.
func (s *MatchingService) ArchiveStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = s.cfg.PendingTTL
	}
	now := s.now().UTC()
	archived, err := s.runs.ArchivePendingBefore(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive stale matching runs")
	}
	s.metrics.RecordRunTransition(models.MatchingRunStatusArchived, int(archived))
	if archived > 0 {
		s.logger.Info("archived stale matching runs", zap.Int64("count", archived), zap.Duration("older_than", olderThan))
	}
	return archived, nil
}

func (s *MatchingService) match(ctx context.Context, companyID string, req dto.RunMatchingRequest, mode string) (*dto.MatchingResponse, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "matching is disabled")
	}
	if companyID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "company scope is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid matching payload")
	}
	req.LicenseTypes = trimCodes(req.LicenseTypes)

	start := time.Now()
	students, err := s.students.ListForMatching(ctx, companyID, req.LicenseTypes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	s.metrics.ObserveDBQuery("matching_students", time.Since(start))

	start = time.Now()
	instructors, err := s.instructors.ListForMatching(ctx, companyID, req.LicenseTypes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}
	s.metrics.ObserveDBQuery("matching_instructors", time.Since(start))

	if s.cfg.MaxRosterLen > 0 && (len(students) > s.cfg.MaxRosterLen || len(instructors) > s.cfg.MaxRosterLen) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("roster exceeds %d entries; narrow the license types or selection", s.cfg.MaxRosterLen))
	}

	start = time.Now()
	resp, err := s.engine.MatchAndAllocate(students, instructors, req.MatchingRequest, req.SelectedStudentIDs, req.SelectedInstructorIDs)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMatching(mode, resp.Stats.MatchedStudents, resp.Stats.UnmatchedStudents, time.Since(start))
	s.logger.Debug("matching pass completed",
		zap.String("mode", mode),
		zap.String("company_id", companyID),
		zap.Int("eligible_students", resp.Stats.TotalStudents),
		zap.Int("eligible_instructors", resp.Stats.TotalInstructors),
		zap.Int("matched", resp.Stats.MatchedStudents),
	)
	return resp, nil
}

func (s *MatchingService) lockPending(ctx context.Context, tx *sqlx.Tx, companyID, runID string, next models.MatchingRunStatus) (*models.MatchingRun, error) {
	run, err := s.runs.LockByID(ctx, tx, companyID, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "matching run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock matching run")
	}
	if !run.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrRunNotPending, fmt.Sprintf("matching run is %s", run.Status))
	}
	return run, nil
}

func (s *MatchingService) enqueueRefresh(companyID, runID string) {
	if s.queue == nil {
		return
	}
	job := jobs.Job{
		Type:    JobTypePerformanceRefresh,
		Payload: map[string]string{"companyId": companyID, "runId": runID},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue performance refresh", zap.String("run_id", runID), zap.Error(err))
	}
}

func runItemFromMatch(runID string, match dto.MatchingResult) models.MatchingRunItem {
	return models.MatchingRunItem{
		ID:                  uuid.NewString(),
		RunID:               runID,
		StudentID:           match.StudentID,
		InstructorID:        match.InstructorID,
		StudentName:         match.StudentName,
		StudentGender:       match.StudentGender,
		StudentStatus:       match.StudentStatus,
		InstructorName:      match.InstructorName,
		InstructorGender:    match.InstructorGender,
		LicenseType:         match.LicenseType,
		VehiclePlate:        match.VehiclePlate,
		VehicleModel:        match.VehicleModel,
		WrittenExamAttempts: match.WrittenExamAttempts,
		WrittenExamStatus:   match.WrittenExamStatus,
		DrivingExamAttempts: match.DrivingExamAttempts,
		DrivingExamStatus:   match.DrivingExamStatus,
		MatchedAt:           match.MatchedAt,
	}
}
