package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/middleware"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
	"github.com/noah-isme/drivematch-api/pkg/response"
)

const dateLayout = "2006-01-02"

type performanceService interface {
	Instructors(ctx context.Context, companyID string, query dto.InstructorPerformanceQuery) (*dto.InstructorPerformanceReport, bool, error)
}

// PerformanceHandler serves instructor performance reports.
type PerformanceHandler struct {
	service performanceService
}

// NewPerformanceHandler constructs the handler.
func NewPerformanceHandler(service performanceService) *PerformanceHandler {
	return &PerformanceHandler{service: service}
}

// Instructors godoc
// @Summary Instructor success rates compared with the previous period
// @Tags Reports
// @Produce json
// @Param period_start query string true "Period start (YYYY-MM-DD or RFC3339)"
// @Param period_end query string true "Period end, inclusive for plain dates (YYYY-MM-DD or RFC3339)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/instructor-performance [get]
func (h *PerformanceHandler) Instructors(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	start, err := parsePeriodBound(c.Query("period_start"), "period_start", false)
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := parsePeriodBound(c.Query("period_end"), "period_end", true)
	if err != nil {
		response.Error(c, err)
		return
	}

	began := time.Now()
	report, cacheHit, err := h.service.Instructors(c.Request.Context(), claims.CompanyID, dto.InstructorPerformanceQuery{PeriodStart: start, PeriodEnd: end})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(began).Milliseconds()
	response.JSON(c, http.StatusOK, report, nil, meta)
}

// parsePeriodBound accepts a plain date or an RFC3339 timestamp. A plain end date covers the whole day.
func parsePeriodBound(raw, field string, end bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, field+" is required")
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		if end {
			t = t.AddDate(0, 0, 1)
		}
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, field+" must be YYYY-MM-DD or RFC3339")
	}
	return t.UTC(), nil
}
