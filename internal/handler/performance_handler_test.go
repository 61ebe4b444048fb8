package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/middleware"
	"github.com/noah-isme/drivematch-api/internal/models"
)

type fakePerformanceSrv struct {
	query   dto.InstructorPerformanceQuery
	company string
	hit     bool
}

func (f *fakePerformanceSrv) Instructors(_ context.Context, companyID string, query dto.InstructorPerformanceQuery) (*dto.InstructorPerformanceReport, bool, error) {
	f.company, f.query = companyID, query
	return &dto.InstructorPerformanceReport{PeriodStart: query.PeriodStart, PeriodEnd: query.PeriodEnd, Instructors: []dto.InstructorPerformance{}}, f.hit, nil
}

func newReportContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", CompanyID: "company-1", Role: models.RoleStaff})
	return c, rec
}

func TestPerformanceHandlerParsesPeriod(t *testing.T) {
	srv := &fakePerformanceSrv{hit: true}
	c, rec := newReportContext("/reports/instructor-performance?period_start=2024-03-01&period_end=2024-03-31")

	NewPerformanceHandler(srv).Instructors(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "company-1", srv.company)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), srv.query.PeriodStart)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), srv.query.PeriodEnd)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestPerformanceHandlerAcceptsTimestamps(t *testing.T) {
	srv := &fakePerformanceSrv{}
	c, rec := newReportContext("/reports/instructor-performance?period_start=2024-03-01T08:00:00%2B07:00&period_end=2024-03-02T08:00:00Z")

	NewPerformanceHandler(srv).Instructors(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC), srv.query.PeriodStart)
	assert.Equal(t, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), srv.query.PeriodEnd)
}

func TestPerformanceHandlerValidatesPeriod(t *testing.T) {
	for _, target := range []string{
		"/reports/instructor-performance?period_end=2024-03-31",
		"/reports/instructor-performance?period_start=2024-03-01&period_end=March",
	} {
		c, rec := newReportContext(target)
		NewPerformanceHandler(&fakePerformanceSrv{}).Instructors(c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}
