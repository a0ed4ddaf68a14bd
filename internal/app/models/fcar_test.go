package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFCAR(t *testing.T) {
	fcar := NewFCAR("CS101", SemesterFall, 2024)

	assert.Zero(t, fcar.ID, "a new FCAR must be unsaved")
	assert.Equal(t, "CS101", fcar.CourseCode)
	assert.Equal(t, SemesterFall, fcar.Semester)
	assert.Equal(t, 2024, fcar.Year)
	assert.Equal(t, StatusDraft, fcar.Status)
	assert.Nil(t, fcar.DateFilled)
	assert.NotNil(t, fcar.AssessmentMethods)
	assert.NotNil(t, fcar.StudentOutcomes)
	assert.NotNil(t, fcar.ImprovementActions)
	assert.False(t, fcar.CreatedAt.IsZero())
}

func TestSemesterValid(t *testing.T) {
	assert.True(t, SemesterFall.Valid())
	assert.True(t, SemesterSpring.Valid())
	assert.True(t, SemesterSummer.Valid())
	assert.False(t, Semester("Winter").Valid())
	assert.False(t, Semester("").Valid())
}

func TestStatusComments(t *testing.T) {
	fcar := NewFCAR("CS101", SemesterFall, 2024)

	assert.Empty(t, fcar.StatusComments())

	fcar.SetStatusComments("insufficient rubric")
	assert.Equal(t, "insufficient rubric", fcar.StatusComments())
	assert.Equal(t, "insufficient rubric", fcar.ImprovementActions[StatusCommentsKey])
}

func TestSetStatusCommentsNilMap(t *testing.T) {
	fcar := &FCAR{}
	fcar.SetStatusComments("late submission")
	assert.Equal(t, "late submission", fcar.StatusComments())
}
