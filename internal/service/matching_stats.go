package service

import (
	"sort"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
)

// utilizationPerAssignment is a display heuristic, not a share of real capacity.
const utilizationPerAssignment = 10

// AggregateStats summarises a run. CurrentStudents comes from the roster and is zero
// when no prior load is known.
func AggregateStats(eligibleStudents []models.Student, instructors []models.Instructor, matches []dto.MatchingResult) dto.MatchingStats {
	eligible := make(map[string]struct{}, len(eligibleStudents))
	for _, student := range eligibleStudents {
		eligible[student.ID] = struct{}{}
	}

	perInstructor := make(map[string]int, len(instructors))
	matched := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		perInstructor[match.InstructorID]++
		if _, ok := eligible[match.StudentID]; ok {
			matched[match.StudentID] = struct{}{}
		}
	}

	utilization := make([]dto.InstructorUtilization, 0, len(instructors))
	for _, instructor := range instructors {
		assigned := perInstructor[instructor.ID]
		utilization = append(utilization, dto.InstructorUtilization{
			InstructorID:    instructor.ID,
			Name:            instructor.FullName,
			CurrentStudents: instructor.CurrentStudents,
			NewAssignments:  assigned,
			Utilization:     assigned * utilizationPerAssignment,
			LicenseTypes:    append([]string(nil), instructor.LicenseTypes...),
			Gender:          instructor.Gender,
		})
	}

	return dto.MatchingStats{
		TotalStudents:         len(eligibleStudents),
		TotalInstructors:      len(instructors),
		MatchedStudents:       len(matched),
		UnmatchedStudents:     len(eligibleStudents) - len(matched),
		InstructorUtilization: utilization,
	}
}

// RankInstructors orders rows by success rate, then student count, then name.
func RankInstructors(rows []dto.InstructorPerformance) []dto.InstructorPerformance {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SuccessRate != rows[j].SuccessRate {
			return rows[i].SuccessRate > rows[j].SuccessRate
		}
		if rows[i].TotalStudents != rows[j].TotalStudents {
			return rows[i].TotalStudents > rows[j].TotalStudents
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}
