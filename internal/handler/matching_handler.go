package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
	"github.com/noah-isme/drivematch-api/pkg/export"
	"github.com/noah-isme/drivematch-api/pkg/response"
)

type matchingService interface {
	Preview(ctx context.Context, companyID string, req dto.RunMatchingRequest) (*dto.MatchingResponse, error)
	Run(ctx context.Context, companyID, actorID string, req dto.RunMatchingRequest) (*dto.MatchingRunResponse, error)
	Apply(ctx context.Context, companyID, runID, actorID string) (*dto.ApplyMatchingRunResponse, error)
	Cancel(ctx context.Context, companyID, runID, actorID string) (*models.MatchingRun, error)
	Get(ctx context.Context, companyID, runID string) (*dto.MatchingRunResponse, error)
	List(ctx context.Context, companyID string, query dto.MatchingRunQuery) ([]models.MatchingRun, *models.Pagination, error)
	Export(ctx context.Context, companyID, runID string, format export.Format) (*dto.MatchingRunExport, error)
}

// MatchingHandler exposes student-instructor matching endpoints.
type MatchingHandler struct {
	service matchingService
}

// NewMatchingHandler constructs the handler.
func NewMatchingHandler(service matchingService) *MatchingHandler {
	return &MatchingHandler{service: service}
}

// Preview godoc
// @Summary Preview student-instructor matches without saving
// @Tags Matching
// @Accept json
// @Produce json
// @Param payload body dto.RunMatchingRequest true "Matching criteria"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /matching/preview [post]
func (h *MatchingHandler) Preview(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	req, ok := bindMatchingRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Preview(c.Request.Context(), claims.CompanyID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Run godoc
// @Summary Run matching and store the outcome as a pending run
// @Tags Matching
// @Accept json
// @Produce json
// @Param payload body dto.RunMatchingRequest true "Matching criteria"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /matching/runs [post]
func (h *MatchingHandler) Run(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	req, ok := bindMatchingRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Run(c.Request.Context(), claims.CompanyID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List matching runs
// @Tags Matching
// @Produce json
// @Param status query string false "Comma separated statuses (PENDING,APPLIED,CANCELLED,ARCHIVED)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /matching/runs [get]
func (h *MatchingHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var query dto.MatchingRunQuery
	var err error
	if query.Page, err = queryInt(c, "page", 1); err != nil {
		response.Error(c, err)
		return
	}
	if query.PageSize, err = queryInt(c, "page_size", 20); err != nil {
		response.Error(c, err)
		return
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if status := strings.ToUpper(strings.TrimSpace(raw)); status != "" {
			query.Status = append(query.Status, models.MatchingRunStatus(status))
		}
	}

	runs, pagination, err := h.service.List(c.Request.Context(), claims.CompanyID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Get godoc
// @Summary Get a matching run with its pairings
// @Tags Matching
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /matching/runs/{id} [get]
func (h *MatchingHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.Get(c.Request.Context(), claims.CompanyID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Apply godoc
// @Summary Apply a pending run as active assignments
// @Tags Matching
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /matching/runs/{id}/apply [post]
func (h *MatchingHandler) Apply(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.Apply(c.Request.Context(), claims.CompanyID, c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel a pending run
// @Tags Matching
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /matching/runs/{id}/cancel [post]
func (h *MatchingHandler) Cancel(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	run, err := h.service.Cancel(c.Request.Context(), claims.CompanyID, c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Export godoc
// @Summary Download a run's pairings
// @Tags Matching
// @Produce text/csv
// @Param id path string true "Run ID"
// @Param format query string false "csv (default)"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /matching/runs/{id}/export [get]
func (h *MatchingHandler) Export(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	format := export.Format(strings.ToLower(strings.TrimSpace(c.Query("format"))))
	file, err := h.service.Export(c.Request.Context(), claims.CompanyID, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func bindMatchingRequest(c *gin.Context) (dto.RunMatchingRequest, bool) {
	var req dto.RunMatchingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid matching payload"))
		return req, false
	}
	return req, true
}
