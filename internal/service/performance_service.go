package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
	"github.com/noah-isme/drivematch-api/pkg/jobs"
)

// PerformanceRepository describes the aggregation queries PerformanceService needs.
type PerformanceRepository interface {
	SummaryByInstructor(ctx context.Context, companyID string, start, end time.Time) ([]models.InstructorPeriodSummary, error)
}

// PerformanceServiceConfig governs performance reporting.
type PerformanceServiceConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// PerformanceService compares instructor success rates across two adjacent windows with cache integration.
type PerformanceService struct {
	repo      PerformanceRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PerformanceServiceConfig
}

// NewPerformanceService constructs a performance service.
func NewPerformanceService(repo PerformanceRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PerformanceServiceConfig) *PerformanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// Instructors returns the ranked report for the window. The boolean indicates whether data originated from cache.
func (s *PerformanceService) Instructors(ctx context.Context, companyID string, query dto.InstructorPerformanceQuery) (*dto.InstructorPerformanceReport, bool, error) {
	if !s.cfg.Enabled {
		return nil, false, appErrors.Clone(appErrors.ErrFeatureDisabled, "performance reports are disabled")
	}
	if companyID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "company scope is required")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid performance period")
	}

	start := query.PeriodStart.UTC()
	end := query.PeriodEnd.UTC()
	report := &dto.InstructorPerformanceReport{
		PeriodStart:         start,
		PeriodEnd:           end,
		PreviousPeriodStart: start.Add(-end.Sub(start)),
		PreviousPeriodEnd:   start,
	}

	cacheKey := makePerformanceCacheKey(companyID, formatPeriod(start), formatPeriod(end))
	var cached dto.InstructorPerformanceReport
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	queryStart := time.Now()
	current, err := s.repo.SummaryByInstructor(ctx, companyID, report.PeriodStart, report.PeriodEnd)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor performance")
	}
	previous, err := s.repo.SummaryByInstructor(ctx, companyID, report.PreviousPeriodStart, report.PreviousPeriodEnd)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous instructor performance")
	}
	s.metrics.ObserveDBQuery("performance_instructors", time.Since(queryStart))

	report.Instructors = buildPerformanceRows(current, previous)
	if err := s.cache.Set(ctx, cacheKey, report, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache instructor performance", zap.Error(err))
	}
	return report, false, nil
}

// Invalidate drops every cached report for the company.
func (s *PerformanceService) Invalidate(ctx context.Context, companyID string) error {
	if companyID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "company id is required")
	}
	return s.cache.Invalidate(ctx, makePerformanceCacheKey(companyID, "*"))
}

// HandleRefreshJob consumes performance_refresh jobs enqueued after a run is applied.
func (s *PerformanceService) HandleRefreshJob(ctx context.Context, job jobs.Job) error {
	companyID := job.Payload["companyId"]
	if err := s.Invalidate(ctx, companyID); err != nil {
		return fmt.Errorf("refresh performance cache for %q: %w", companyID, err)
	}
	s.logger.Debug("performance cache refreshed", zap.String("company_id", companyID), zap.String("run_id", job.Payload["runId"]))
	return nil
}

// buildPerformanceRows scores the current window against the previous one. Instructors with
// no students in the current window are left out.
func buildPerformanceRows(current, previous []models.InstructorPeriodSummary) []dto.InstructorPerformance {
	previousRates := make(map[string]int, len(previous))
	for _, row := range previous {
		if row.TotalStudents > 0 {
			previousRates[row.InstructorID] = SuccessRate(row.PassedStudents, row.TotalStudents)
		}
	}

	rows := make([]dto.InstructorPerformance, 0, len(current))
	for _, row := range current {
		if row.TotalStudents <= 0 {
			continue
		}
		rate := SuccessRate(row.PassedStudents, row.TotalStudents)
		perf := dto.InstructorPerformance{
			InstructorID:   row.InstructorID,
			Name:           row.InstructorName,
			TotalStudents:  row.TotalStudents,
			PassedStudents: row.PassedStudents,
			SuccessRate:    rate,
		}
		if prev, ok := previousRates[row.InstructorID]; ok {
			prevRate := prev
			perf.PreviousSuccessRate = &prevRate
		}
		perf.Trend = CompareTrend(rate, perf.PreviousSuccessRate)
		rows = append(rows, perf)
	}
	return RankInstructors(rows)
}

func makePerformanceCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 24)
	builder.WriteString("performance")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		if part == "*" {
			builder.WriteString(part)
			continue
		}
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func formatPeriod(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
