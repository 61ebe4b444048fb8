package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/drivematch-api/internal/dto"
	"github.com/noah-isme/drivematch-api/internal/models"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
)

// MatchingEngineConfig governs tie-breaking and the clock used for match timestamps.
type MatchingEngineConfig struct {
	TieBreak   string
	RandomSeed int64
	Now        func() time.Time
}

// MatchingEngine pairs eligible students with instructors. It keeps no state between
// calls and may be shared across goroutines.
type MatchingEngine struct {
	tieBreaker TieBreaker
	now        func() time.Time
	validator  *validator.Validate
}

// NewMatchingEngine builds an engine from configuration.
func NewMatchingEngine(cfg MatchingEngineConfig, validate *validator.Validate) *MatchingEngine {
	if validate == nil {
		validate = validator.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MatchingEngine{
		tieBreaker: NewTieBreaker(cfg.TieBreak, cfg.RandomSeed),
		now:        cfg.Now,
		validator:  validate,
	}
}

// WithTieBreaker returns a copy of the engine using tb. The receiver is left untouched.
func (e *MatchingEngine) WithTieBreaker(tb TieBreaker) *MatchingEngine {
	cp := *e
	if tb != nil {
		cp.tieBreaker = tb
	}
	return &cp
}

// MatchAndAllocate runs one matching pass. Empty selections do not restrict the rosters.
// Business outcomes are reported as MatchingError entries; only malformed input errors.
func (e *MatchingEngine) MatchAndAllocate(
	students []models.Student,
	instructors []models.Instructor,
	req dto.MatchingRequest,
	selectedStudentIDs []string,
	selectedInstructorIDs []string,
) (*dto.MatchingResponse, error) {
	if err := e.validateRequest(&req); err != nil {
		return nil, err
	}
	if err := rejectDuplicateIDs(students, instructors); err != nil {
		return nil, err
	}

	eligibleStudents, eligibleInstructors := FilterEligible(students, instructors, req, idSet(selectedStudentIDs), idSet(selectedInstructorIDs))
	resp := &dto.MatchingResponse{
		Matches: []dto.MatchingResult{},
		Errors:  []dto.MatchingError{},
	}
	licenses := strings.Join(req.LicenseTypes, ", ")

	if len(eligibleStudents) == 0 {
		resp.Errors = append(resp.Errors, dto.MatchingError{
			Reason:  models.ReasonNoEligibleStudents,
			Details: fmt.Sprintf("no eligible students found for license types %s", licenses),
		})
		resp.Stats = AggregateStats(nil, eligibleInstructors, nil)
		return resp, nil
	}

	if len(eligibleInstructors) == 0 {
		for _, student := range eligibleStudents {
			resp.Errors = append(resp.Errors, dto.MatchingError{
				StudentID:   student.ID,
				StudentName: student.FullName,
				Reason:      models.ReasonNoSuitableInstructor,
				Details:     fmt.Sprintf("no active instructor teaches license type %s", student.LicenseType),
			})
		}
		resp.Stats = AggregateStats(eligibleStudents, nil, nil)
		return resp, nil
	}

	males, females := 0, 0
	if req.ConsiderGender {
		for _, student := range eligibleStudents {
			switch student.Gender {
			case models.GenderMale:
				males++
			case models.GenderFemale:
				females++
			default:
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s has unsupported gender %q", student.ID, student.Gender))
			}
		}
	}

	ws, err := planCapacity(eligibleInstructors, len(eligibleStudents), req.ConsiderGender, males, females)
	if err != nil {
		return nil, err
	}
	resp.Matches = allocate(ws, eligibleStudents, e.tieBreaker, e.now().UTC())
	resp.Errors = append(resp.Errors, instructorFullErrors(eligibleStudents, resp.Matches)...)

	resp.Stats = AggregateStats(eligibleStudents, eligibleInstructors, resp.Matches)
	return resp, nil
}

// instructorFullErrors reports every eligible student that allocate left without an instructor.
func instructorFullErrors(eligible []models.Student, matches []dto.MatchingResult) []dto.MatchingError {
	matched := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		matched[match.StudentID] = struct{}{}
	}
	var errs []dto.MatchingError
	for _, student := range eligible {
		if _, ok := matched[student.ID]; ok {
			continue
		}
		errs = append(errs, dto.MatchingError{
			StudentID:   student.ID,
			StudentName: student.FullName,
			Reason:      models.ReasonInstructorFull,
			Details:     "all eligible instructors reached their target capacity",
		})
	}
	return errs
}

// rejectDuplicateIDs fails when a roster lists the same student or instructor twice.
func rejectDuplicateIDs(students []models.Student, instructors []models.Instructor) error {
	seen := make(map[string]struct{}, len(students))
	for _, student := range students {
		if _, dup := seen[student.ID]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s appears more than once in the roster", student.ID))
		}
		seen[student.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(instructors))
	for _, instructor := range instructors {
		if _, dup := seen[instructor.ID]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("instructor %s appears more than once in the roster", instructor.ID))
		}
		seen[instructor.ID] = struct{}{}
	}
	return nil
}

func (e *MatchingEngine) validateRequest(req *dto.MatchingRequest) error {
	if err := e.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid matching request")
	}
	req.LicenseTypes = trimCodes(req.LicenseTypes)
	for _, code := range req.LicenseTypes {
		if code == "" {
			return appErrors.Clone(appErrors.ErrValidation, "license types must not be blank")
		}
	}
	return nil
}

func trimCodes(codes []string) []string {
	trimmed := make([]string, 0, len(codes))
	for _, code := range codes {
		trimmed = append(trimmed, strings.TrimSpace(code))
	}
	return trimmed
}
