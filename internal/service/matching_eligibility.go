package service

import (
	"strings"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
)

// FilterEligible narrows the rosters to the candidates of one matching pass.
// Non-empty selections restrict the computed sets further; they never widen them.
// Input order is preserved in both returned slices.
func FilterEligible(
	students []models.Student,
	instructors []models.Instructor,
	req dto.MatchingRequest,
	selectedStudents map[string]struct{},
	selectedInstructors map[string]struct{},
) ([]models.Student, []models.Instructor) {
	licenseTypes := licenseTypeSet(req.LicenseTypes)

	eligibleStudents := make([]models.Student, 0, len(students))
	for _, student := range students {
		if !isEligibleStudent(student, licenseTypes, req.PrioritizeFirstDrivingAttempt) {
			continue
		}
		if !selected(selectedStudents, student.ID) {
			continue
		}
		eligibleStudents = append(eligibleStudents, student)
	}

	eligibleInstructors := make([]models.Instructor, 0, len(instructors))
	for _, instructor := range instructors {
		if instructor.Status != models.InstructorStatusActive || !instructor.Teaches(licenseTypes) {
			continue
		}
		if !selected(selectedInstructors, instructor.ID) {
			continue
		}
		eligibleInstructors = append(eligibleInstructors, instructor)
	}

	return eligibleStudents, eligibleInstructors
}

func isEligibleStudent(student models.Student, licenseTypes map[string]struct{}, firstAttemptOnly bool) bool {
	if _, ok := licenseTypes[student.LicenseType]; !ok {
		return false
	}
	if student.WrittenExam.Status != models.ExamStatusPassed {
		return false
	}
	if student.DrivingExam.Status == models.ExamStatusPassed {
		return false
	}
	if student.Status != models.StudentStatusActive {
		return false
	}
	if student.HasActiveAssignment() {
		return false
	}
	if firstAttemptOnly && student.DrivingExam.Attempts != 0 {
		return false
	}
	return true
}

func selected(set map[string]struct{}, id string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[id]
	return ok
}

func licenseTypeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if trimmed := strings.TrimSpace(code); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func idSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}
