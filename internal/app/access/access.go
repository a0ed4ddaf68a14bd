package access

import (
	"context"
	"fmt"
	"time"

	"github.com/eakgun/fcartrack/internal/app/models"
	"github.com/eakgun/fcartrack/internal/pkg/apperrors"
)

// Role identifies the capability an actor carries.
type Role int

// Role constants
const (
	RoleAdmin Role = iota
	RoleProfessor
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleProfessor:
		return "professor"
	}
	return "unknown"
}

// Actor is the resolved identity performing a mutation. For professors,
// InstructorID is the actor's own instructor record.
type Actor struct {
	Role         Role
	InstructorID int64
}

// Admin returns an admin actor.
func Admin() Actor {
	return Actor{Role: RoleAdmin}
}

// Professor returns a professor actor for the given instructor.
func Professor(instructorID int64) Actor {
	return Actor{Role: RoleProfessor, InstructorID: instructorID}
}

// Field names a mutable FCAR field. The three auxiliary maps are fields too:
// setting one replaces the map wholesale, matching the storage semantics.
type Field string

// Field constants
const (
	FieldCourseCode         Field = "courseCode"
	FieldSemester           Field = "semester"
	FieldYear               Field = "year"
	FieldInstructorID       Field = "instructorId"
	FieldOutcomeID          Field = "outcomeId"
	FieldIndicatorID        Field = "indicatorId"
	FieldGoalID             Field = "goalId"
	FieldMethodID           Field = "methodId"
	FieldMethodDesc         Field = "methodDesc"
	FieldStudentExpectID    Field = "studentExpectId"
	FieldSummaryDesc        Field = "summaryDesc"
	FieldActionID           Field = "actionId"
	FieldAssessmentMethods  Field = "assessmentMethods"
	FieldStudentOutcomes    Field = "studentOutcomes"
	FieldImprovementActions Field = "improvementActions"
)

// AssignmentChecker reports whether an instructor is assigned to an FCAR.
// Implemented by the assignment repository.
type AssignmentChecker interface {
	IsAssigned(ctx context.Context, fcarID, instructorID int64) (bool, error)
}

// Policy decides whether an actor may mutate a field of an FCAR and applies
// the mutation. It is the only sanctioned mutation path outside repository
// hydration.
type Policy struct {
	assignments AssignmentChecker
}

// NewPolicy creates a policy consulting the given assignment registry. A nil
// registry restricts professors to FCARs whose recorded instructor matches.
func NewPolicy(assignments AssignmentChecker) *Policy {
	return &Policy{assignments: assignments}
}

// CanMutate reports whether the actor may set the field on the FCAR.
func (p *Policy) CanMutate(ctx context.Context, actor Actor, fcar *models.FCAR, field Field) (bool, error) {
	if actor.Role == RoleAdmin {
		return true, nil
	}

	// Taking ownership of an unowned FCAR: first write wins.
	if field == FieldInstructorID {
		return fcar.InstructorID == 0, nil
	}

	return p.CanAccess(ctx, actor, fcar)
}

// CanAccess reports whether the actor may act on the FCAR at all: admins
// always, professors when they are the recorded instructor or hold an
// assignment for it.
func (p *Policy) CanAccess(ctx context.Context, actor Actor, fcar *models.FCAR) (bool, error) {
	if actor.Role == RoleAdmin {
		return true, nil
	}

	if fcar.InstructorID == actor.InstructorID {
		return true, nil
	}

	// An unsaved FCAR has no assignment rows yet.
	if p.assignments == nil || fcar.ID == 0 {
		return false, nil
	}

	assigned, err := p.assignments.IsAssigned(ctx, fcar.ID, actor.InstructorID)
	if err != nil {
		return false, fmt.Errorf("checking assignment for fcar %d: %w", fcar.ID, err)
	}
	return assigned, nil
}

// SetField validates the (field, actor) pair against the policy, then applies
// the value and stamps UpdatedAt. On permission failure the entity is left
// untouched and ErrPermissionDenied is returned.
func (p *Policy) SetField(ctx context.Context, fcar *models.FCAR, field Field, value interface{}, actor Actor) error {
	allowed, err := p.CanMutate(ctx, actor, fcar, field)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not set %s on fcar %d",
			apperrors.ErrPermissionDenied, actor.Role, field, fcar.ID)
	}

	// Professors may only claim ownership for themselves.
	if field == FieldInstructorID && actor.Role == RoleProfessor {
		id, ok := value.(int64)
		if !ok || id != actor.InstructorID {
			return fmt.Errorf("%w: professor may only take ownership with own instructor id",
				apperrors.ErrPermissionDenied)
		}
	}

	if err := applyField(fcar, field, value); err != nil {
		return err
	}

	fcar.UpdatedAt = time.Now()
	return nil
}

// applyField assigns the value to the named field, checking the value type.
func applyField(fcar *models.FCAR, field Field, value interface{}) error {
	switch field {
	case FieldCourseCode:
		return assign(field, value, &fcar.CourseCode)
	case FieldSemester:
		return assign(field, value, &fcar.Semester)
	case FieldYear:
		return assign(field, value, &fcar.Year)
	case FieldInstructorID:
		return assign(field, value, &fcar.InstructorID)
	case FieldOutcomeID:
		return assign(field, value, &fcar.OutcomeID)
	case FieldIndicatorID:
		return assign(field, value, &fcar.IndicatorID)
	case FieldGoalID:
		return assign(field, value, &fcar.GoalID)
	case FieldMethodID:
		return assign(field, value, &fcar.MethodID)
	case FieldMethodDesc:
		return assign(field, value, &fcar.MethodDesc)
	case FieldStudentExpectID:
		return assign(field, value, &fcar.StudentExpectID)
	case FieldSummaryDesc:
		return assign(field, value, &fcar.SummaryDesc)
	case FieldActionID:
		return assign(field, value, &fcar.ActionID)
	case FieldAssessmentMethods:
		return assign(field, value, &fcar.AssessmentMethods)
	case FieldStudentOutcomes:
		return assign(field, value, &fcar.StudentOutcomes)
	case FieldImprovementActions:
		return assign(field, value, &fcar.ImprovementActions)
	}
	return fmt.Errorf("%w: %s", apperrors.ErrUnknownField, field)
}

// assign stores value into dst when the dynamic type matches.
func assign[T any](field Field, value interface{}, dst *T) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("%w: field %s expects %T, got %T",
			apperrors.ErrValidationFailed, field, *dst, value)
	}
	*dst = v
	return nil
}
