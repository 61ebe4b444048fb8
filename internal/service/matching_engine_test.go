package service

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
)

var fixedMatchTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newStableEngine() *MatchingEngine {
	return NewMatchingEngine(MatchingEngineConfig{
		TieBreak: "stable",
		Now:      func() time.Time { return fixedMatchTime },
	}, nil)
}

func eligibleStudent(id string, gender models.Gender, license string) models.Student {
	return models.Student{
		ID:          id,
		FullName:    "Student " + id,
		Gender:      gender,
		LicenseType: license,
		Status:      models.StudentStatusActive,
		WrittenExam: models.ExamRecord{Status: models.ExamStatusPassed, Attempts: 1, MaxAttempts: 3},
		DrivingExam: models.ExamRecord{Status: models.ExamStatusNotTaken, Attempts: 0, MaxAttempts: 3},
	}
}

func activeInstructor(id string, gender models.Gender, licenses ...string) models.Instructor {
	return models.Instructor{
		ID:           id,
		FullName:     "Instructor " + id,
		Gender:       gender,
		Status:       models.InstructorStatusActive,
		LicenseTypes: licenses,
	}
}

func studentsOf(prefix string, count int, gender models.Gender) []models.Student {
	students := make([]models.Student, 0, count)
	for i := 1; i <= count; i++ {
		students = append(students, eligibleStudent(fmt.Sprintf("%s-%02d", prefix, i), gender, "B"))
	}
	return students
}

func assignmentsPerInstructor(matches []dto.MatchingResult) map[string]int {
	counts := make(map[string]int)
	for _, m := range matches {
		counts[m.InstructorID]++
	}
	return counts
}

func TestMatchAndAllocateEvenSplitScenario(t *testing.T) {
	students := append(studentsOf("m", 6, models.GenderMale), studentsOf("f", 4, models.GenderFemale)...)
	instructors := []models.Instructor{
		activeInstructor("i-1", models.GenderMale, "B"),
		activeInstructor("i-2", models.GenderFemale, "B"),
	}

	resp, err := newStableEngine().MatchAndAllocate(students, instructors, dto.MatchingRequest{LicenseTypes: []string{"B"}, ConsiderGender: true}, nil, nil)
	require.NoError(t, err)

	assert.Len(t, resp.Matches, 10)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, 10, resp.Stats.TotalStudents)
	assert.Equal(t, 2, resp.Stats.TotalInstructors)
	assert.Equal(t, 10, resp.Stats.MatchedStudents)
	assert.Equal(t, 0, resp.Stats.UnmatchedStudents)

	males := map[string]int{}
	females := map[string]int{}
	for _, m := range resp.Matches {
		if m.StudentGender == models.GenderMale {
			males[m.InstructorID]++
		} else {
			females[m.InstructorID]++
		}
	}
	assert.Equal(t, map[string]int{"i-1": 3, "i-2": 3}, males)
	assert.Equal(t, map[string]int{"i-1": 2, "i-2": 2}, females)

	require.Len(t, resp.Stats.InstructorUtilization, 2)
	for _, u := range resp.Stats.InstructorUtilization {
		assert.Equal(t, 5, u.NewAssignments)
		assert.Equal(t, 50, u.Utilization)
	}
}

func TestMatchAndAllocateRemainderScenario(t *testing.T) {
	students := studentsOf("s", 7, models.GenderMale)
	instructors := []models.Instructor{
		activeInstructor("i-1", models.GenderMale, "B"),
		activeInstructor("i-2", models.GenderMale, "B"),
		activeInstructor("i-3", models.GenderFemale, "B"),
	}

	resp, err := newStableEngine().MatchAndAllocate(students, instructors, dto.MatchingRequest{LicenseTypes: []string{"B"}}, nil, nil)
	require.NoError(t, err)

	assert.Len(t, resp.Matches, 7)
	assert.Empty(t, resp.Errors)
	require.Len(t, resp.Stats.InstructorUtilization, 3)
	assert.Equal(t, 3, resp.Stats.InstructorUtilization[0].NewAssignments)
	assert.Equal(t, 2, resp.Stats.InstructorUtilization[1].NewAssignments)
	assert.Equal(t, 2, resp.Stats.InstructorUtilization[2].NewAssignments)
}

func TestMatchAndAllocateNoInstructorShortCircuit(t *testing.T) {
	students := studentsOf("s", 4, models.GenderFemale)
	instructors := []models.Instructor{
		activeInstructor("i-1", models.GenderMale, "A"),
		{ID: "i-2", Status: models.InstructorStatusInactive, LicenseTypes: []string{"B"}},
	}

	resp, err := newStableEngine().MatchAndAllocate(students, instructors, dto.MatchingRequest{LicenseTypes: []string{"B"}}, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, resp.Matches)
	require.Len(t, resp.Errors, 4)
	for _, e := range resp.Errors {
		assert.Equal(t, models.ReasonNoSuitableInstructor, e.Reason)
		assert.NotEmpty(t, e.StudentID)
		assert.NotEmpty(t, e.Details)
	}
	assert.Equal(t, 4, resp.Stats.TotalStudents)
	assert.Equal(t, 4, resp.Stats.UnmatchedStudents)
	assert.Equal(t, 0, resp.Stats.TotalInstructors)
}

func TestMatchAndAllocateNoStudentShortCircuit(t *testing.T) {
	student := eligibleStudent("s-1", models.GenderMale, "B")
	student.WrittenExam.Status = models.ExamStatusFailed
	instructors := []models.Instructor{activeInstructor("i-1", models.GenderMale, "B")}

	resp, err := newStableEngine().MatchAndAllocate([]models.Student{student}, instructors, dto.MatchingRequest{LicenseTypes: []string{"B"}}, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, resp.Matches)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, models.ReasonNoEligibleStudents, resp.Errors[0].Reason)
	assert.Empty(t, resp.Errors[0].StudentID)
	assert.Equal(t, 0, resp.Stats.TotalStudents)
	assert.Equal(t, 0, resp.Stats.UnmatchedStudents)
}

func TestMatchAndAllocateRejectsMalformedRequest(t *testing.T) {
	engine := newStableEngine()
	cases := map[string]dto.MatchingRequest{
		"missing license types": {},
		"empty license types":   {LicenseTypes: []string{}},
		"blank license type":    {LicenseTypes: []string{"B", "  "}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := engine.MatchAndAllocate(nil, nil, req, nil, nil)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
		})
	}
}

func TestMatchAndAllocateRejectsUnknownGenderWhenBalancing(t *testing.T) {
	students := []models.Student{eligibleStudent("s-1", models.Gender("x"), "B")}
	instructors := []models.Instructor{activeInstructor("i-1", models.GenderMale, "B")}

	_, err := newStableEngine().MatchAndAllocate(students, instructors, dto.MatchingRequest{LicenseTypes: []string{"B"}, ConsiderGender: true}, nil, nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	resp, err := newStableEngine().MatchAndAllocate(students, instructors, dto.MatchingRequest{LicenseTypes: []string{"B"}}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Matches, 1)
}

func TestMatchAndAllocateHonoursSelections(t *testing.T) {
	students := studentsOf("s", 4, models.GenderMale)
	instructors := []models.Instructor{
		activeInstructor("i-1", models.GenderMale, "B"),
		activeInstructor("i-2", models.GenderMale, "B"),
	}

	resp, err := newStableEngine().MatchAndAllocate(students, instructors, dto.MatchingRequest{LicenseTypes: []string{"B"}}, []string{"s-01", "s-03", "ghost"}, []string{"i-2"})
	require.NoError(t, err)

	require.Len(t, resp.Matches, 2)
	for _, m := range resp.Matches {
		assert.Equal(t, "i-2", m.InstructorID)
	}
	assert.Equal(t, 2, resp.Stats.TotalStudents)
	assert.Equal(t, 1, resp.Stats.TotalInstructors)
}

func TestMatchAndAllocateSnapshotsStudentData(t *testing.T) {
	plate := "B 1234 XY"
	instructor := activeInstructor("i-1", models.GenderMale, "B")
	instructor.VehiclePlate = &plate
	student := eligibleStudent("s-1", models.GenderFemale, "B")
	student.DrivingExam = models.ExamRecord{Status: models.ExamStatusFailed, Attempts: 2, MaxAttempts: 3}

	resp, err := newStableEngine().MatchAndAllocate([]models.Student{student}, []models.Instructor{instructor}, dto.MatchingRequest{LicenseTypes: []string{"B"}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)

	plate = "changed"
	match := resp.Matches[0]
	assert.Equal(t, "B 1234 XY", *match.VehiclePlate)
	assert.Equal(t, 2, match.DrivingExamAttempts)
	assert.Equal(t, models.ExamStatusFailed, match.DrivingExamStatus)
	assert.Equal(t, 1, match.WrittenExamAttempts)
	assert.Equal(t, "active", match.StudentStatus)
	assert.Equal(t, fixedMatchTime, match.MatchedAt)
	assert.Equal(t, "Instructor i-1", match.InstructorName)
}

func TestMatchAndAllocateProperties(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	licenses := []string{"A", "B", "C"}
	genders := []models.Gender{models.GenderMale, models.GenderFemale}

	for iteration := 0; iteration < 200; iteration++ {
		students := make([]models.Student, rnd.Intn(40))
		for i := range students {
			s := eligibleStudent(fmt.Sprintf("s-%d", i), genders[rnd.Intn(2)], licenses[rnd.Intn(len(licenses))])
			s.DrivingExam.Attempts = rnd.Intn(2)
			if rnd.Intn(6) == 0 {
				s.Status = models.StudentStatusInactive
			}
			students[i] = s
		}
		instructors := make([]models.Instructor, rnd.Intn(6))
		for i := range instructors {
			instructors[i] = activeInstructor(fmt.Sprintf("i-%d", i), genders[rnd.Intn(2)], licenses[rnd.Intn(len(licenses))])
		}
		req := dto.MatchingRequest{
			LicenseTypes:                  []string{licenses[rnd.Intn(len(licenses))], "B"},
			ConsiderGender:                rnd.Intn(2) == 0,
			PrioritizeFirstDrivingAttempt: rnd.Intn(3) == 0,
		}

		engine := NewMatchingEngine(MatchingEngineConfig{RandomSeed: int64(iteration + 1)}, nil)
		resp, err := engine.MatchAndAllocate(students, instructors, req, nil, nil)
		require.NoError(t, err)

		eligibleStudents, eligibleInstructors := FilterEligible(students, instructors, req, nil, nil)
		seen := make(map[string]struct{}, len(resp.Matches))
		for _, m := range resp.Matches {
			_, dup := seen[m.StudentID]
			require.False(t, dup, "student %s matched twice", m.StudentID)
			seen[m.StudentID] = struct{}{}
		}

		full := 0
		for _, e := range resp.Errors {
			if e.Reason == models.ReasonInstructorFull {
				full++
			}
		}
		if len(eligibleStudents) > 0 && len(eligibleInstructors) > 0 {
			assert.Equal(t, len(eligibleStudents), len(resp.Matches)+full)

			ws, err := planCapacity(eligibleInstructors, len(eligibleStudents), false, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, len(eligibleStudents), ws.totalTarget())
			counts := assignmentsPerInstructor(resp.Matches)
			for _, target := range ws.targets {
				assert.LessOrEqual(t, counts[target.instructor.ID], target.TargetStudentCount)
			}
		}
		assert.Equal(t, resp.Stats.TotalStudents, resp.Stats.MatchedStudents+resp.Stats.UnmatchedStudents)
	}
}

func TestMatchAndAllocateRejectsDuplicateRosterIDs(t *testing.T) {
	req := dto.MatchingRequest{LicenseTypes: []string{"B"}, ConsiderGender: true}
	instructors := []models.Instructor{
		activeInstructor("i-1", models.GenderMale, "B"),
		activeInstructor("i-2", models.GenderFemale, "B"),
	}

	students := []models.Student{
		eligibleStudent("s-1", models.GenderMale, "B"),
		eligibleStudent("s-1", models.GenderMale, "B"),
		eligibleStudent("s-2", models.GenderFemale, "B"),
	}
	_, err := newStableEngine().MatchAndAllocate(students, instructors, req, nil, nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Contains(t, err.Error(), "s-1")

	doubled := append(instructors, activeInstructor("i-1", models.GenderMale, "B"))
	_, err = newStableEngine().MatchAndAllocate(students[1:], doubled, req, nil, nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Contains(t, err.Error(), "i-1")

	resp, err := newStableEngine().MatchAndAllocate(students[1:], instructors, req, nil, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Matches, 2)
	assert.Equal(t, len(resp.Matches), resp.Stats.MatchedStudents)
}

func TestWithTieBreakerLeavesSharedEngineUntouched(t *testing.T) {
	shared := NewMatchingEngine(MatchingEngineConfig{TieBreak: "random", RandomSeed: 3}, nil)
	stable := shared.WithTieBreaker(StableTieBreaker{})

	assert.NotSame(t, shared, stable)
	assert.IsType(t, &RandomTieBreaker{}, shared.tieBreaker)
	assert.IsType(t, StableTieBreaker{}, stable.tieBreaker)
	assert.Same(t, shared.validator, stable.validator)

	same := shared.WithTieBreaker(nil)
	assert.Equal(t, shared.tieBreaker, same.tieBreaker)
}

func TestInstructorFullErrorsCoverUnplacedStudents(t *testing.T) {
	students := studentsOf("s", 5, models.GenderMale)
	ws, err := planCapacity(instructorsOf(2), 3, false, 0, 0)
	require.NoError(t, err)

	matches := allocate(ws, students, StableTieBreaker{}, fixedMatchTime)
	require.Len(t, matches, 3)

	errs := instructorFullErrors(students, matches)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, models.ReasonInstructorFull, e.Reason)
		assert.Equal(t, "Student "+e.StudentID, e.StudentName)
	}
	assert.Equal(t, []string{"s-04", "s-05"}, []string{errs[0].StudentID, errs[1].StudentID})

	stats := AggregateStats(students, instructorsOf(2), matches)
	assert.Equal(t, len(matches), stats.MatchedStudents)
	assert.Equal(t, len(errs), stats.UnmatchedStudents)
	assert.Equal(t, stats.TotalStudents, len(matches)+len(errs))

	assert.Empty(t, instructorFullErrors(students[:3], matches))
}
