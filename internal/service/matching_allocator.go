package service

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
	"github.com/noah-isme/drivematch-api/pkg/config"
)

// TieBreaker decides the order in which students of one sublist are placed.
type TieBreaker interface {
	Order(students []models.Student)
}

// RandomTieBreaker shuffles students so that ties do not favour the same students every run.
type RandomTieBreaker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomTieBreaker seeds the shuffle; a zero seed uses the current time.
func NewRandomTieBreaker(seed int64) *RandomTieBreaker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomTieBreaker{rnd: rand.New(rand.NewSource(seed))}
}

// Order shuffles students in place.
func (t *RandomTieBreaker) Order(students []models.Student) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rnd.Shuffle(len(students), func(i, j int) {
		students[i], students[j] = students[j], students[i]
	})
}

// StableTieBreaker orders students by id, making runs reproducible.
type StableTieBreaker struct{}

// Order sorts students by id in place.
func (StableTieBreaker) Order(students []models.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].ID < students[j].ID
	})
}

// NewTieBreaker resolves the configured strategy name.
func NewTieBreaker(strategy string, seed int64) TieBreaker {
	if strategy == config.TieBreakStable {
		return StableTieBreaker{}
	}
	return NewRandomTieBreaker(seed)
}

// allocate places students greedily onto the least loaded instructors of the working set.
// Gendered mode places all males before any female. A student that fits no gender
// sub-quota overflows to any instructor still below its total target.
func allocate(ws *allocationWorkingSet, students []models.Student, tieBreaker TieBreaker, now time.Time) []dto.MatchingResult {
	results := make([]dto.MatchingResult, 0, len(students))

	place := func(group []models.Student, gendered bool) {
		tieBreaker.Order(group)
		for _, student := range group {
			idx := -1
			if gendered {
				idx = ws.pickWithinGenderQuota(student.Gender)
			}
			if idx < 0 {
				idx = ws.pickBelowTarget()
			}
			if idx < 0 {
				continue
			}
			ws.assign(idx, student.Gender)
			results = append(results, snapshotMatch(student, ws.targets[idx].instructor, now))
		}
	}

	if !ws.considerGender {
		place(append([]models.Student(nil), students...), false)
		return results
	}

	var males, females []models.Student
	for _, student := range students {
		if student.Gender == models.GenderMale {
			males = append(males, student)
		} else {
			females = append(females, student)
		}
	}
	place(males, true)
	place(females, true)
	return results
}

// snapshotMatch copies the fields observed at filter time into a result.
func snapshotMatch(student models.Student, instructor *models.Instructor, now time.Time) dto.MatchingResult {
	return dto.MatchingResult{
		StudentID:           student.ID,
		InstructorID:        instructor.ID,
		StudentName:         student.FullName,
		StudentGender:       student.Gender,
		StudentStatus:       string(student.Status),
		InstructorName:      instructor.FullName,
		InstructorGender:    instructor.Gender,
		LicenseType:         student.LicenseType,
		VehiclePlate:        copyString(instructor.VehiclePlate),
		VehicleModel:        copyString(instructor.VehicleModel),
		MatchedAt:           now,
		WrittenExamAttempts: student.WrittenExam.Attempts,
		WrittenExamStatus:   student.WrittenExam.Status,
		DrivingExamAttempts: student.DrivingExam.Attempts,
		DrivingExamStatus:   student.DrivingExam.Status,
	}
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
