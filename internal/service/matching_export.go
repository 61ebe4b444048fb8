package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
	"github.com/noah-isme/drivematch-api/pkg/export"
)

var runExportHeaders = []string{
	"Student", "Gender", "License", "Instructor", "Instructor Gender", "Vehicle",
	"Written Exam", "Driving Exam", "Matched At",
}

// Export renders a run's pairings as a downloadable CSV feed for the reporting service.
func (s *MatchingService) Export(ctx context.Context, companyID, runID string, format export.Format) (*dto.MatchingRunExport, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	run, err := s.Get(ctx, companyID, runID)
	if err != nil {
		return nil, err
	}

	content, err := renderer.Render(runDataset(run))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render matching run export")
	}
	return &dto.MatchingRunExport{
		Filename:    fmt.Sprintf("matching-run-%s.%s", run.Run.ID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

func runDataset(run *dto.MatchingRunResponse) export.Dataset {
	data := export.Dataset{
		Headers: runExportHeaders,
		Rows:    make([][]string, 0, len(run.Items)),
	}
	for _, item := range run.Items {
		data.Rows = append(data.Rows, []string{
			item.StudentName,
			string(item.StudentGender),
			item.LicenseType,
			item.InstructorName,
			string(item.InstructorGender),
			vehicleLabel(item),
			examLabel(item.WrittenExamStatus, item.WrittenExamAttempts),
			examLabel(item.DrivingExamStatus, item.DrivingExamAttempts),
			item.MatchedAt.UTC().Format(time.RFC3339),
		})
	}
	return data
}

func vehicleLabel(item models.MatchingRunItem) string {
	switch {
	case item.VehicleModel != nil && item.VehiclePlate != nil:
		return *item.VehicleModel + " (" + *item.VehiclePlate + ")"
	case item.VehiclePlate != nil:
		return *item.VehiclePlate
	case item.VehicleModel != nil:
		return *item.VehicleModel
	default:
		return ""
	}
}

func examLabel(status models.ExamStatus, attempts int) string {
	return string(status) + " / " + strconv.Itoa(attempts)
}
