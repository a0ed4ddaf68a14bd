package models

import "time"

// Semester represents the term an FCAR covers.
type Semester string

// Semester constants
const (
	SemesterFall   Semester = "Fall"
	SemesterSpring Semester = "Spring"
	SemesterSummer Semester = "Summer"
)

// Valid reports whether the semester is one of the fixed enumeration.
func (s Semester) Valid() bool {
	switch s {
	case SemesterFall, SemesterSpring, SemesterSummer:
		return true
	}
	return false
}

// Status represents the review state of an FCAR.
type Status string

// Status constants. Draft is the initial state; Approved and Rejected are
// terminal, though a rejected FCAR may be saved back to Draft and resubmitted.
const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
)

// StatusCommentsKey is the reserved improvement-actions key that mirrors the
// comments column of the status table. It is never written to the
// improvement-actions table itself.
const StatusCommentsKey = "statusComments"

// FCAR represents one Faculty Course Assessment Report: a course offering,
// the instructor responsible for it, and the outcome-achievement
// measurements recorded against it.
type FCAR struct {
	ID              int64      `json:"id" db:"fcar_id"`
	CourseCode      string     `json:"courseCode" db:"course_code" validate:"required"`
	Semester        Semester   `json:"semester" db:"semester" validate:"required,oneof=Fall Spring Summer"`
	Year            int        `json:"year" db:"year" validate:"gte=1000,lte=9999"`
	InstructorID    int64      `json:"instructorId" db:"instructor_id"`
	DateFilled      *time.Time `json:"dateFilled,omitempty" db:"date_filled"` // Nullable, set on submission
	OutcomeID       int64      `json:"outcomeId" db:"outcome_id"`
	IndicatorID     int64      `json:"indicatorId" db:"indicator_id"`
	GoalID          int64      `json:"goalId" db:"goal_id"`
	MethodID        int64      `json:"methodId" db:"method_id"`
	MethodDesc      string     `json:"methodDesc" db:"method_desc"`
	StudentExpectID int64      `json:"studentExpectId" db:"stud_expect_id"`
	SummaryDesc     string     `json:"summaryDesc" db:"summary_desc"`
	ActionID        int64      `json:"actionId" db:"action_id"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`

	// Status is persisted in its own table so approve/reject are
	// independent writes; it must agree with that row after a Save.
	Status Status `json:"status"`

	// Auxiliary maps, each stored in its own key/value table and replaced
	// wholesale on every Save.
	AssessmentMethods  map[string]string `json:"assessmentMethods"`
	StudentOutcomes    map[string]int    `json:"studentOutcomes"`
	ImprovementActions map[string]string `json:"improvementActions"`
}

// NewFCAR creates an unsaved FCAR (ID zero) in Draft state with empty
// auxiliary maps.
func NewFCAR(courseCode string, semester Semester, year int) *FCAR {
	now := time.Now()
	return &FCAR{
		CourseCode:         courseCode,
		Semester:           semester,
		Year:               year,
		Status:             StatusDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
		AssessmentMethods:  make(map[string]string),
		StudentOutcomes:    make(map[string]int),
		ImprovementActions: make(map[string]string),
	}
}

// StatusComments returns the reserved status-comment mirror from the
// improvement-actions map, or the empty string when unset.
func (f *FCAR) StatusComments() string {
	return f.ImprovementActions[StatusCommentsKey]
}

// SetStatusComments records comments under the reserved mirror key.
func (f *FCAR) SetStatusComments(comments string) {
	if f.ImprovementActions == nil {
		f.ImprovementActions = make(map[string]string)
	}
	f.ImprovementActions[StatusCommentsKey] = comments
}
