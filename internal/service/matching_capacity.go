package service

import (
	"fmt"

	"github.com/noah-isme/drivematch-api/internal/models"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
)

// instructorTarget holds the quota and running counters of one instructor for a single run.
type instructorTarget struct {
	instructor *models.Instructor

	TargetStudentCount int
	TargetMales        int
	TargetFemales      int

	AssignedStudents int
	AssignedMales    int
	AssignedFemales  int
}

// allocationWorkingSet is indexed by instructor position and discarded once a run ends.
type allocationWorkingSet struct {
	considerGender bool
	targets        []instructorTarget
}

// planCapacity spreads total students evenly over instructors, handing the remainder
// one unit at a time to the first instructors in list order. In gendered mode the
// male and female counts are split the same way; when the two sub-targets of an
// instructor overflow its capacity both are scaled down by floor division.
func planCapacity(instructors []models.Instructor, total int, considerGender bool, males, females int) (*allocationWorkingSet, error) {
	n := len(instructors)
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity planning requires at least one instructor")
	}
	if total < 0 || males < 0 || females < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student counts must not be negative")
	}
	if considerGender && males+females != total {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("male (%d) and female (%d) counts must add up to total (%d)", males, females, total))
	}

	ws := &allocationWorkingSet{
		considerGender: considerGender,
		targets:        make([]instructorTarget, n),
	}
	for i := range instructors {
		target := &ws.targets[i]
		target.instructor = &instructors[i]
		target.TargetStudentCount = splitShare(total, n, i)
		if !considerGender {
			continue
		}

		capacity := target.TargetStudentCount
		tm := splitShare(males, n, i)
		tf := splitShare(females, n, i)
		if sum := tm + tf; sum > capacity {
			tm = tm * capacity / sum
			tf = tf * capacity / sum
		}
		target.TargetMales = tm
		target.TargetFemales = tf
	}
	return ws, nil
}

// splitShare returns position i's part of total divided over n slots.
func splitShare(total, n, i int) int {
	share := total / n
	if i < total%n {
		share++
	}
	return share
}

func (ws *allocationWorkingSet) totalTarget() int {
	sum := 0
	for _, t := range ws.targets {
		sum += t.TargetStudentCount
	}
	return sum
}

// pickWithinGenderQuota returns the least loaded instructor that still has room in both
// its gender sub-target and its total target, or -1.
func (ws *allocationWorkingSet) pickWithinGenderQuota(gender models.Gender) int {
	best := -1
	for i := range ws.targets {
		t := &ws.targets[i]
		if t.AssignedStudents >= t.TargetStudentCount {
			continue
		}
		switch gender {
		case models.GenderMale:
			if t.AssignedMales >= t.TargetMales {
				continue
			}
		case models.GenderFemale:
			if t.AssignedFemales >= t.TargetFemales {
				continue
			}
		default:
			continue
		}
		if best < 0 || t.AssignedStudents < ws.targets[best].AssignedStudents {
			best = i
		}
	}
	return best
}

// pickBelowTarget returns the least loaded instructor below its total target, or -1.
func (ws *allocationWorkingSet) pickBelowTarget() int {
	best := -1
	for i := range ws.targets {
		t := &ws.targets[i]
		if t.AssignedStudents >= t.TargetStudentCount {
			continue
		}
		if best < 0 || t.AssignedStudents < ws.targets[best].AssignedStudents {
			best = i
		}
	}
	return best
}

func (ws *allocationWorkingSet) assign(idx int, gender models.Gender) {
	t := &ws.targets[idx]
	t.AssignedStudents++
	switch gender {
	case models.GenderMale:
		t.AssignedMales++
	case models.GenderFemale:
		t.AssignedFemales++
	}
}
