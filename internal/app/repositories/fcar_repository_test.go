package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eakgun/fcartrack/internal/app/models"
	"github.com/eakgun/fcartrack/internal/pkg/apperrors"
)

var errUndefinedTable = &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *FCARRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewFCARRepository(mock)
}

// anyMainRowArgs matches the 15 positional arguments of the fcars INSERT and
// UPDATE statements without constraining their values; pgxmock requires the
// expected argument count to equal the actual one.
func anyMainRowArgs() []any {
	args := make([]any, 15)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleFCAR() *models.FCAR {
	fcar := models.NewFCAR("CS101", models.SemesterFall, 2024)
	fcar.InstructorID = 42
	fcar.AssessmentMethods["workUsed"] = "Exam 3"
	fcar.StudentOutcomes["outcome_1"] = 3
	fcar.ImprovementActions["summary"] = "revise rubric"
	return fcar
}

// expectAuxReplace sets up the lazy-DDL, delete and insert expectations for
// the three auxiliary tables plus the status upsert, in Save's order.
func expectAuxReplace(mock pgxmock.PgxPoolIface, fcar *models.FCAR, id int64) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fcar_assessment_methods").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("DELETE FROM fcar_assessment_methods").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for key, value := range fcar.AssessmentMethods {
		mock.ExpectExec("INSERT INTO fcar_assessment_methods").WithArgs(id, key, value).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fcar_student_outcomes").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("DELETE FROM fcar_student_outcomes").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for key, level := range fcar.StudentOutcomes {
		mock.ExpectExec("INSERT INTO fcar_student_outcomes").WithArgs(id, key, level).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fcar_improvement_actions").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("DELETE FROM fcar_improvement_actions").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for key, value := range fcar.ImprovementActions {
		if key == models.StatusCommentsKey {
			continue
		}
		mock.ExpectExec("INSERT INTO fcar_improvement_actions").WithArgs(id, key, value).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fcar_status").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("INSERT INTO fcar_status").
		WithArgs(id, string(fcar.Status), fcar.StatusComments()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestSaveInsertAssignsID(t *testing.T) {
	mock, repo := newMockRepo(t)
	fcar := sampleFCAR()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fcars").WithArgs(anyMainRowArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"fcar_id"}).AddRow(int64(7)))
	expectAuxReplace(mock, fcar, 7)
	mock.ExpectCommit()

	saved, err := repo.Save(context.Background(), fcar)
	require.NoError(t, err)
	assert.Equal(t, int64(7), saved.ID)
	assert.Equal(t, models.StatusDraft, saved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRelocatesStatusComments(t *testing.T) {
	mock, repo := newMockRepo(t)
	fcar := sampleFCAR()
	delete(fcar.ImprovementActions, "summary")
	fcar.SetStatusComments("insufficient rubric")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fcars").WithArgs(anyMainRowArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"fcar_id"}).AddRow(int64(3)))
	// The reserved key must not reach the improvement-actions table; it
	// travels as the status-row comment instead. expectAuxReplace expects no
	// improvement-action insert and comments "insufficient rubric".
	expectAuxReplace(mock, fcar, 3)
	mock.ExpectCommit()

	_, err := repo.Save(context.Background(), fcar)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnMidTransactionFailure(t *testing.T) {
	mock, repo := newMockRepo(t)
	fcar := sampleFCAR()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fcars").WithArgs(anyMainRowArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"fcar_id"}).AddRow(int64(7)))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fcar_assessment_methods").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("DELETE FROM fcar_assessment_methods").WithArgs(int64(7)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	saved, err := repo.Save(context.Background(), fcar)
	require.Error(t, err)
	assert.Nil(t, saved)
	// The generated ID must not leak out of a rolled-back transaction.
	assert.Zero(t, fcar.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUpdateExistingRow(t *testing.T) {
	mock, repo := newMockRepo(t)
	fcar := sampleFCAR()
	fcar.ID = 12

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE fcars").WithArgs(anyMainRowArgs()...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAuxReplace(mock, fcar, 12)
	mock.ExpectCommit()

	saved, err := repo.Save(context.Background(), fcar)
	require.NoError(t, err)
	assert.Equal(t, int64(12), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUpdateMissingRow(t *testing.T) {
	mock, repo := newMockRepo(t)
	fcar := sampleFCAR()
	fcar.ID = 12

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE fcars").WithArgs(anyMainRowArgs()...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), fcar)
	assert.ErrorIs(t, err, apperrors.ErrFCARNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRequiresID(t *testing.T) {
	_, repo := newMockRepo(t)

	ok, err := repo.Update(context.Background(), models.NewFCAR("CS101", models.SemesterFall, 2024))
	require.NoError(t, err)
	assert.False(t, ok, "update of an unsaved FCAR must refuse without a transaction")
}

func TestUpdatePersistsSavedFCAR(t *testing.T) {
	mock, repo := newMockRepo(t)
	fcar := sampleFCAR()
	fcar.ID = 5

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE fcars").WithArgs(anyMainRowArgs()...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAuxReplace(mock, fcar, 5)
	mock.ExpectCommit()

	ok, err := repo.Update(context.Background(), fcar)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesAllTables(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	for _, table := range []string{"fcar_assessment_methods", "fcar_student_outcomes", "fcar_improvement_actions", "fcar_status"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).
			WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
		mock.ExpectExec("DELETE FROM " + table).WithArgs(int64(7)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
	}
	mock.ExpectExec("DELETE FROM fcars").WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	deleted, err := repo.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingFCAR(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	for _, table := range []string{"fcar_assessment_methods", "fcar_student_outcomes", "fcar_improvement_actions", "fcar_status"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).
			WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
		mock.ExpectExec("DELETE FROM " + table).WithArgs(int64(99)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
	}
	mock.ExpectExec("DELETE FROM fcars").WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	deleted, err := repo.Delete(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func mainRowColumns() []string {
	return []string{
		"fcar_id", "course_code", "semester", "year", "instructor_id", "date_filled",
		"outcome_id", "indicator_id", "goal_id", "method_id", "method_desc",
		"stud_expect_id", "summary_desc", "action_id", "created_at", "updated_at",
	}
}

func mainRowValues(id int64) []any {
	now := time.Now()
	return []any{
		id, "CS101", models.SemesterFall, 2024, int64(42), (*time.Time)(nil),
		int64(1), int64(2), int64(3), int64(4), "Exam-based assessment",
		int64(5), "students met the target", int64(6), now, now,
	}
}

func TestGetByIDHydratesEntity(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT fcar_id, course_code").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(mainRowColumns()).AddRow(mainRowValues(7)...))
	mock.ExpectQuery("FROM fcar_assessment_methods").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"method_key", "method_value"}).
			AddRow("workUsed", "Exam 3").
			AddRow("level1", "5"))
	mock.ExpectQuery("FROM fcar_student_outcomes").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"outcome_key", "achievement_level"}).
			AddRow("outcome_1", 3))
	mock.ExpectQuery("FROM fcar_improvement_actions").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"action_key", "action_value"}).
			AddRow("summary", "revise rubric"))
	mock.ExpectQuery("SELECT status, comments FROM fcar_status").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "comments"}).
			AddRow("Rejected", "insufficient rubric"))

	fcar, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), fcar.ID)
	assert.Equal(t, "CS101", fcar.CourseCode)
	assert.Equal(t, models.SemesterFall, fcar.Semester)
	assert.Equal(t, int64(42), fcar.InstructorID)
	assert.Equal(t, map[string]string{"workUsed": "Exam 3", "level1": "5"}, fcar.AssessmentMethods)
	assert.Equal(t, map[string]int{"outcome_1": 3}, fcar.StudentOutcomes)
	assert.Equal(t, models.StatusRejected, fcar.Status)
	// Status comments are mirrored back under the reserved key.
	assert.Equal(t, "insufficient rubric", fcar.StatusComments())
	assert.Equal(t, "revise rubric", fcar.ImprovementActions["summary"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT fcar_id, course_code").WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	fcar, err := repo.GetByID(context.Background(), 404)
	assert.Nil(t, fcar)
	assert.ErrorIs(t, err, apperrors.ErrFCARNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDToleratesMissingAuxiliaryTables(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT fcar_id, course_code").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(mainRowColumns()).AddRow(mainRowValues(7)...))
	mock.ExpectQuery("FROM fcar_assessment_methods").WithArgs(int64(7)).
		WillReturnError(errUndefinedTable)
	mock.ExpectQuery("FROM fcar_student_outcomes").WithArgs(int64(7)).
		WillReturnError(errUndefinedTable)
	mock.ExpectQuery("FROM fcar_improvement_actions").WithArgs(int64(7)).
		WillReturnError(errUndefinedTable)
	mock.ExpectQuery("SELECT status, comments FROM fcar_status").WithArgs(int64(7)).
		WillReturnError(errUndefinedTable)

	fcar, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)

	assert.Empty(t, fcar.AssessmentMethods)
	assert.Empty(t, fcar.StudentOutcomes)
	assert.Empty(t, fcar.ImprovementActions)
	assert.Equal(t, models.StatusDraft, fcar.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByStatusMissingStatusTable(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT fcar_id FROM fcar_status").WithArgs("Submitted").
		WillReturnError(errUndefinedTable)

	fcars, err := repo.GetByStatus(context.Background(), models.StatusSubmitted)
	require.NoError(t, err)
	assert.Empty(t, fcars)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByStatusHydratesMatches(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT fcar_id FROM fcar_status").WithArgs("Submitted").
		WillReturnRows(pgxmock.NewRows([]string{"fcar_id"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT fcar_id, course_code").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(mainRowColumns()).AddRow(mainRowValues(7)...))
	mock.ExpectQuery("FROM fcar_assessment_methods").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"method_key", "method_value"}))
	mock.ExpectQuery("FROM fcar_student_outcomes").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"outcome_key", "achievement_level"}))
	mock.ExpectQuery("FROM fcar_improvement_actions").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"action_key", "action_value"}))
	mock.ExpectQuery("SELECT status, comments FROM fcar_status").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "comments"}).AddRow("Submitted", ""))

	fcars, err := repo.GetByStatus(context.Background(), models.StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, fcars, 1)
	assert.Equal(t, models.StatusSubmitted, fcars[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByCourseCode(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT fcar_id, course_code").WithArgs("CS101").
		WillReturnRows(pgxmock.NewRows(mainRowColumns()).
			AddRow(mainRowValues(7)...).
			AddRow(mainRowValues(8)...))
	for _, id := range []int64{7, 8} {
		mock.ExpectQuery("FROM fcar_assessment_methods").WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"method_key", "method_value"}))
		mock.ExpectQuery("FROM fcar_student_outcomes").WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"outcome_key", "achievement_level"}))
		mock.ExpectQuery("FROM fcar_improvement_actions").WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"action_key", "action_value"}))
		mock.ExpectQuery("SELECT status, comments FROM fcar_status").WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"status", "comments"}).AddRow("Draft", ""))
	}

	fcars, err := repo.GetByCourseCode(context.Background(), "CS101")
	require.NoError(t, err)
	require.Len(t, fcars, 2)
	assert.Equal(t, int64(7), fcars[0].ID)
	assert.Equal(t, int64(8), fcars[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fcar_status").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("INSERT INTO fcar_status").
		WithArgs(int64(9), "Rejected", "insufficient rubric").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.UpdateStatus(context.Background(), 9, models.StatusRejected, "insufficient rubric")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
