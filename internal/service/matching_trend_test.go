package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
)

func intPtr(v int) *int { return &v }

func TestCompareTrend(t *testing.T) {
	cases := []struct {
		name     string
		current  int
		previous *int
		want     models.TrendDirection
	}{
		{name: "clear rise", current: 90, previous: intPtr(80), want: models.TrendUp},
		{name: "clear fall", current: 70, previous: intPtr(80), want: models.TrendDown},
		{name: "small rise", current: 82, previous: intPtr(80), want: models.TrendStable},
		{name: "no prior data", current: 75, previous: nil, want: models.TrendStable},
		{name: "zero prior", current: 60, previous: intPtr(0), want: models.TrendStable},
		{name: "six points up", current: 80, previous: intPtr(74), want: models.TrendUp},
		{name: "five points up", current: 79, previous: intPtr(74), want: models.TrendStable},
		{name: "five points down", current: 69, previous: intPtr(74), want: models.TrendStable},
		{name: "six points down", current: 68, previous: intPtr(74), want: models.TrendDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CompareTrend(tc.current, tc.previous))
		})
	}
}

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, 0, SuccessRate(3, 0))
	assert.Equal(t, 67, SuccessRate(2, 3))
	assert.Equal(t, 33, SuccessRate(1, 3))
	assert.Equal(t, 100, SuccessRate(4, 4))
	assert.Equal(t, 50, SuccessRate(1, 2))
}

func TestAggregateStatsUsesRosterLoad(t *testing.T) {
	first := activeInstructor("i-1", models.GenderMale, "B")
	first.CurrentStudents = 4
	second := activeInstructor("i-2", models.GenderFemale, "A", "B")
	students := studentsOf("s", 3, models.GenderMale)
	matches := []dto.MatchingResult{
		{StudentID: "s-01", InstructorID: "i-1"},
		{StudentID: "s-02", InstructorID: "i-1"},
	}

	stats := AggregateStats(students, []models.Instructor{first, second}, matches)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 2, stats.TotalInstructors)
	assert.Equal(t, 2, stats.MatchedStudents)
	assert.Equal(t, 1, stats.UnmatchedStudents)
	assert.Equal(t, dto.InstructorUtilization{
		InstructorID:    "i-1",
		Name:            "Instructor i-1",
		CurrentStudents: 4,
		NewAssignments:  2,
		Utilization:     20,
		LicenseTypes:    []string{"B"},
		Gender:          models.GenderMale,
	}, stats.InstructorUtilization[0])
	assert.Equal(t, 0, stats.InstructorUtilization[1].NewAssignments)
	assert.Equal(t, []string{"A", "B"}, stats.InstructorUtilization[1].LicenseTypes)
}

func TestRankInstructors(t *testing.T) {
	rows := []dto.InstructorPerformance{
		{InstructorID: "c", Name: "Citra", SuccessRate: 80, TotalStudents: 5},
		{InstructorID: "a", Name: "Agus", SuccessRate: 90, TotalStudents: 2},
		{InstructorID: "b", Name: "Budi", SuccessRate: 80, TotalStudents: 10},
		{InstructorID: "d", Name: "Andi", SuccessRate: 80, TotalStudents: 5},
	}

	ranked := RankInstructors(rows)
	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.InstructorID)
	}
	assert.Equal(t, []string{"a", "b", "d", "c"}, ids)
}
