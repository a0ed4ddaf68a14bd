package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/eakgun/fcartrack/internal/app/models"
	"github.com/eakgun/fcartrack/internal/db"
	"github.com/eakgun/fcartrack/internal/pkg/apperrors"
	"github.com/eakgun/fcartrack/internal/pkg/dberrors"
	"github.com/eakgun/fcartrack/internal/pkg/logger"
)

const selectFCARQuery = `
	SELECT fcar_id, course_code, semester, year, instructor_id, date_filled,
	       outcome_id, indicator_id, goal_id, method_id, method_desc,
	       stud_expect_id, summary_desc, action_id, created_at, updated_at
	FROM fcars`

// Auxiliary tables are provisioned lazily: every write path issues the
// idempotent DDL first, inside the same transaction as the data it carries.
const (
	createAssessmentMethodsTable = `
	CREATE TABLE IF NOT EXISTS fcar_assessment_methods (
		fcar_id BIGINT NOT NULL,
		method_key VARCHAR(255) NOT NULL,
		method_value TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (fcar_id, method_key)
	)`

	createStudentOutcomesTable = `
	CREATE TABLE IF NOT EXISTS fcar_student_outcomes (
		fcar_id BIGINT NOT NULL,
		outcome_key VARCHAR(255) NOT NULL,
		achievement_level INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (fcar_id, outcome_key)
	)`

	createImprovementActionsTable = `
	CREATE TABLE IF NOT EXISTS fcar_improvement_actions (
		fcar_id BIGINT NOT NULL,
		action_key VARCHAR(255) NOT NULL,
		action_value TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (fcar_id, action_key)
	)`

	createStatusTable = `
	CREATE TABLE IF NOT EXISTS fcar_status (
		fcar_id BIGINT PRIMARY KEY,
		status VARCHAR(32) NOT NULL,
		comments TEXT NOT NULL DEFAULT ''
	)`

	upsertStatusQuery = `
	INSERT INTO fcar_status (fcar_id, status, comments)
	VALUES ($1, $2, $3)
	ON CONFLICT (fcar_id) DO UPDATE SET status = EXCLUDED.status, comments = EXCLUDED.comments`
)

// FCARRepository handles database operations for FCARs. All access goes
// through the injected connection provider; the repository holds no other
// state.
type FCARRepository struct {
	db db.Pool
}

// NewFCARRepository creates a new FCAR repository
func NewFCARRepository(db db.Pool) *FCARRepository {
	return &FCARRepository{
		db: db,
	}
}

// GetByID retrieves an FCAR by ID, including its three auxiliary maps and
// status row. Returns apperrors.ErrFCARNotFound when no main row exists.
func (r *FCARRepository) GetByID(ctx context.Context, id int64) (*models.FCAR, error) {
	row := r.db.QueryRow(ctx, selectFCARQuery+` WHERE fcar_id = $1`, id)

	fcar, err := scanFCAR(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrFCARNotFound
		}
		return nil, fmt.Errorf("error retrieving fcar %d: %w", id, err)
	}

	if err := r.hydrate(ctx, fcar); err != nil {
		return nil, err
	}

	return fcar, nil
}

// GetAll retrieves all FCARs
func (r *FCARRepository) GetAll(ctx context.Context) ([]*models.FCAR, error) {
	return r.queryFCARs(ctx, selectFCARQuery+` ORDER BY fcar_id`)
}

// GetByCourseCode retrieves all FCARs for a course
func (r *FCARRepository) GetByCourseCode(ctx context.Context, courseCode string) ([]*models.FCAR, error) {
	return r.queryFCARs(ctx, selectFCARQuery+` WHERE course_code = $1 ORDER BY fcar_id`, courseCode)
}

// GetByInstructorID retrieves all FCARs owned by an instructor
func (r *FCARRepository) GetByInstructorID(ctx context.Context, instructorID int64) ([]*models.FCAR, error) {
	return r.queryFCARs(ctx, selectFCARQuery+` WHERE instructor_id = $1 ORDER BY fcar_id`, instructorID)
}

// GetBySemesterAndYear retrieves all FCARs for a term
func (r *FCARRepository) GetBySemesterAndYear(ctx context.Context, semester models.Semester, year int) ([]*models.FCAR, error) {
	return r.queryFCARs(ctx, selectFCARQuery+` WHERE semester = $1 AND year = $2 ORDER BY fcar_id`, string(semester), year)
}

// GetByStatus retrieves all FCARs whose status row matches the given status.
// A missing status table means no FCAR has ever been saved, so the result is
// empty.
func (r *FCARRepository) GetByStatus(ctx context.Context, status models.Status) ([]*models.FCAR, error) {
	rows, err := r.db.Query(ctx, `SELECT fcar_id FROM fcar_status WHERE status = $1 ORDER BY fcar_id`, string(status))
	if err != nil {
		if dberrors.IsUndefinedTableError(err) {
			logger.Warn().Str("table", "fcar_status").Msg("Status table not provisioned yet, treating as empty")
			return nil, nil
		}
		return nil, fmt.Errorf("error querying fcar status rows: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		if dberrors.IsUndefinedTableError(err) {
			logger.Warn().Str("table", "fcar_status").Msg("Status table not provisioned yet, treating as empty")
			return nil, nil
		}
		return nil, err
	}

	fcars := make([]*models.FCAR, 0, len(ids))
	for _, id := range ids {
		fcar, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		fcars = append(fcars, fcar)
	}

	return fcars, nil
}

// Save persists the FCAR in a single transaction spanning the main table, the
// three auxiliary tables and the status table. A zero ID inserts and assigns
// the generated ID; otherwise the main row is updated. Auxiliary maps are
// replaced wholesale. Any step failing rolls the whole transaction back.
func (r *FCARRepository) Save(ctx context.Context, fcar *models.FCAR) (*models.FCAR, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	id, err := r.saveInTx(ctx, tx, fcar)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.Error().Err(rbErr).Msg("Failed to rollback fcar save transaction")
		}
		logger.Error().Err(err).Int64("fcarId", fcar.ID).Str("courseCode", fcar.CourseCode).Msg("Saving fcar failed, transaction rolled back")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// The generated ID becomes visible only after a successful commit.
	fcar.ID = id
	return fcar, nil
}

// Update persists an already-saved FCAR. Returns false without opening a
// transaction when the FCAR has no ID yet.
func (r *FCARRepository) Update(ctx context.Context, fcar *models.FCAR) (bool, error) {
	if fcar.ID <= 0 {
		return false, nil
	}
	if _, err := r.Save(ctx, fcar); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes an FCAR and all of its auxiliary and status rows in one
// transaction. Auxiliary rows go first so referential constraints, if
// present, are respected. Reports whether the main row existed.
func (r *FCARRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	deleted, err := r.deleteInTx(ctx, tx, id)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.Error().Err(rbErr).Msg("Failed to rollback fcar delete transaction")
		}
		logger.Error().Err(err).Int64("fcarId", id).Msg("Deleting fcar failed, transaction rolled back")
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return deleted, nil
}

// UpdateStatus upserts the status row for an FCAR. Status changes are
// independent low-contention writes and do not touch the other tables.
func (r *FCARRepository) UpdateStatus(ctx context.Context, id int64, status models.Status, comments string) error {
	if _, err := r.db.Exec(ctx, createStatusTable); err != nil {
		return fmt.Errorf("error provisioning status table: %w", err)
	}
	if _, err := r.db.Exec(ctx, upsertStatusQuery, id, string(status), comments); err != nil {
		logger.Error().Err(err).Int64("fcarId", id).Str("status", string(status)).Msg("Updating fcar status failed")
		return fmt.Errorf("error updating status for fcar %d: %w", id, err)
	}
	return nil
}

// saveInTx performs all writes of a Save and returns the FCAR's ID, which for
// an insert is the freshly generated one.
func (r *FCARRepository) saveInTx(ctx context.Context, tx pgx.Tx, fcar *models.FCAR) (int64, error) {
	now := time.Now()
	fcar.UpdatedAt = now
	if fcar.CreatedAt.IsZero() {
		fcar.CreatedAt = now
	}
	if fcar.Status == "" {
		fcar.Status = models.StatusDraft
	}

	id := fcar.ID
	if id == 0 {
		insertQuery := `
		INSERT INTO fcars (course_code, semester, year, instructor_id, date_filled,
		                   outcome_id, indicator_id, goal_id, method_id, method_desc,
		                   stud_expect_id, summary_desc, action_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING fcar_id`

		err := tx.QueryRow(ctx, insertQuery,
			fcar.CourseCode, string(fcar.Semester), fcar.Year, fcar.InstructorID, fcar.DateFilled,
			fcar.OutcomeID, fcar.IndicatorID, fcar.GoalID, fcar.MethodID, fcar.MethodDesc,
			fcar.StudentExpectID, fcar.SummaryDesc, fcar.ActionID, fcar.CreatedAt, fcar.UpdatedAt,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("error inserting fcar: %w", err)
		}
	} else {
		updateQuery := `
		UPDATE fcars
		SET course_code = $1, semester = $2, year = $3, instructor_id = $4, date_filled = $5,
		    outcome_id = $6, indicator_id = $7, goal_id = $8, method_id = $9, method_desc = $10,
		    stud_expect_id = $11, summary_desc = $12, action_id = $13, updated_at = $14
		WHERE fcar_id = $15`

		tag, err := tx.Exec(ctx, updateQuery,
			fcar.CourseCode, string(fcar.Semester), fcar.Year, fcar.InstructorID, fcar.DateFilled,
			fcar.OutcomeID, fcar.IndicatorID, fcar.GoalID, fcar.MethodID, fcar.MethodDesc,
			fcar.StudentExpectID, fcar.SummaryDesc, fcar.ActionID, fcar.UpdatedAt, id,
		)
		if err != nil {
			return 0, fmt.Errorf("error updating fcar %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return 0, apperrors.ErrFCARNotFound
		}
	}

	if err := r.replaceAssessmentMethods(ctx, tx, id, fcar.AssessmentMethods); err != nil {
		return 0, err
	}
	if err := r.replaceStudentOutcomes(ctx, tx, id, fcar.StudentOutcomes); err != nil {
		return 0, err
	}
	if err := r.replaceImprovementActions(ctx, tx, id, fcar.ImprovementActions); err != nil {
		return 0, err
	}

	// The reserved statusComments key is carried by the status table.
	if _, err := tx.Exec(ctx, createStatusTable); err != nil {
		return 0, fmt.Errorf("error provisioning status table: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertStatusQuery, id, string(fcar.Status), fcar.StatusComments()); err != nil {
		return 0, fmt.Errorf("error upserting status for fcar %d: %w", id, err)
	}

	return id, nil
}

// deleteInTx removes all rows belonging to the FCAR, auxiliary tables first.
func (r *FCARRepository) deleteInTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	auxTables := []struct {
		create string
		delete string
	}{
		{createAssessmentMethodsTable, `DELETE FROM fcar_assessment_methods WHERE fcar_id = $1`},
		{createStudentOutcomesTable, `DELETE FROM fcar_student_outcomes WHERE fcar_id = $1`},
		{createImprovementActionsTable, `DELETE FROM fcar_improvement_actions WHERE fcar_id = $1`},
		{createStatusTable, `DELETE FROM fcar_status WHERE fcar_id = $1`},
	}

	for _, t := range auxTables {
		if _, err := tx.Exec(ctx, t.create); err != nil {
			return false, fmt.Errorf("error provisioning auxiliary table: %w", err)
		}
		if _, err := tx.Exec(ctx, t.delete, id); err != nil {
			return false, fmt.Errorf("error deleting auxiliary rows for fcar %d: %w", id, err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM fcars WHERE fcar_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("error deleting fcar %d: %w", id, err)
	}

	return tag.RowsAffected() > 0, nil
}

// replaceAssessmentMethods replaces the assessment-method rows wholesale.
func (r *FCARRepository) replaceAssessmentMethods(ctx context.Context, tx pgx.Tx, id int64, methods map[string]string) error {
	if _, err := tx.Exec(ctx, createAssessmentMethodsTable); err != nil {
		return fmt.Errorf("error provisioning assessment methods table: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM fcar_assessment_methods WHERE fcar_id = $1`, id); err != nil {
		return fmt.Errorf("error clearing assessment methods for fcar %d: %w", id, err)
	}
	for key, value := range methods {
		if _, err := tx.Exec(ctx,
			`INSERT INTO fcar_assessment_methods (fcar_id, method_key, method_value) VALUES ($1, $2, $3)`,
			id, key, value); err != nil {
			return fmt.Errorf("error inserting assessment method %q for fcar %d: %w", key, id, err)
		}
	}
	return nil
}

// replaceStudentOutcomes replaces the student-outcome rows wholesale.
func (r *FCARRepository) replaceStudentOutcomes(ctx context.Context, tx pgx.Tx, id int64, outcomes map[string]int) error {
	if _, err := tx.Exec(ctx, createStudentOutcomesTable); err != nil {
		return fmt.Errorf("error provisioning student outcomes table: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM fcar_student_outcomes WHERE fcar_id = $1`, id); err != nil {
		return fmt.Errorf("error clearing student outcomes for fcar %d: %w", id, err)
	}
	for key, level := range outcomes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO fcar_student_outcomes (fcar_id, outcome_key, achievement_level) VALUES ($1, $2, $3)`,
			id, key, level); err != nil {
			return fmt.Errorf("error inserting student outcome %q for fcar %d: %w", key, id, err)
		}
	}
	return nil
}

// replaceImprovementActions replaces the improvement-action rows wholesale,
// skipping the reserved statusComments key.
func (r *FCARRepository) replaceImprovementActions(ctx context.Context, tx pgx.Tx, id int64, actions map[string]string) error {
	if _, err := tx.Exec(ctx, createImprovementActionsTable); err != nil {
		return fmt.Errorf("error provisioning improvement actions table: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM fcar_improvement_actions WHERE fcar_id = $1`, id); err != nil {
		return fmt.Errorf("error clearing improvement actions for fcar %d: %w", id, err)
	}
	for key, value := range actions {
		if key == models.StatusCommentsKey {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO fcar_improvement_actions (fcar_id, action_key, action_value) VALUES ($1, $2, $3)`,
			id, key, value); err != nil {
			return fmt.Errorf("error inserting improvement action %q for fcar %d: %w", key, id, err)
		}
	}
	return nil
}

// queryFCARs runs a main-table query and hydrates each resulting entity.
// Hydration is one extra round-trip per auxiliary table per FCAR; acceptable
// for per-institution data volumes.
func (r *FCARRepository) queryFCARs(ctx context.Context, query string, args ...interface{}) ([]*models.FCAR, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying fcars: %w", err)
	}
	defer rows.Close()

	var fcars []*models.FCAR
	for rows.Next() {
		fcar, err := scanFCAR(rows)
		if err != nil {
			return nil, err
		}
		fcars = append(fcars, fcar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, fcar := range fcars {
		if err := r.hydrate(ctx, fcar); err != nil {
			return nil, err
		}
	}

	return fcars, nil
}

// hydrate loads the three auxiliary maps and the status row onto the entity.
// Tables that do not exist yet count as empty auxiliary data.
func (r *FCARRepository) hydrate(ctx context.Context, fcar *models.FCAR) error {
	methods, err := r.loadStringMap(ctx, fcar.ID,
		`SELECT method_key, method_value FROM fcar_assessment_methods WHERE fcar_id = $1`,
		"fcar_assessment_methods")
	if err != nil {
		return err
	}
	fcar.AssessmentMethods = methods

	outcomes, err := r.loadStudentOutcomes(ctx, fcar.ID)
	if err != nil {
		return err
	}
	fcar.StudentOutcomes = outcomes

	actions, err := r.loadStringMap(ctx, fcar.ID,
		`SELECT action_key, action_value FROM fcar_improvement_actions WHERE fcar_id = $1`,
		"fcar_improvement_actions")
	if err != nil {
		return err
	}
	fcar.ImprovementActions = actions

	return r.loadStatus(ctx, fcar)
}

// loadStringMap reads one string-keyed auxiliary table for an FCAR.
func (r *FCARRepository) loadStringMap(ctx context.Context, id int64, query, table string) (map[string]string, error) {
	result := make(map[string]string)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		if dberrors.IsUndefinedTableError(err) {
			logger.Warn().Str("table", table).Int64("fcarId", id).Msg("Auxiliary table not provisioned yet, treating as empty")
			return result, nil
		}
		return nil, fmt.Errorf("error loading %s for fcar %d: %w", table, id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		if dberrors.IsUndefinedTableError(err) {
			logger.Warn().Str("table", table).Int64("fcarId", id).Msg("Auxiliary table not provisioned yet, treating as empty")
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("error loading %s for fcar %d: %w", table, id, err)
	}

	return result, nil
}

// loadStudentOutcomes reads the achievement-level table for an FCAR.
func (r *FCARRepository) loadStudentOutcomes(ctx context.Context, id int64) (map[string]int, error) {
	result := make(map[string]int)

	rows, err := r.db.Query(ctx,
		`SELECT outcome_key, achievement_level FROM fcar_student_outcomes WHERE fcar_id = $1`, id)
	if err != nil {
		if dberrors.IsUndefinedTableError(err) {
			logger.Warn().Str("table", "fcar_student_outcomes").Int64("fcarId", id).Msg("Auxiliary table not provisioned yet, treating as empty")
			return result, nil
		}
		return nil, fmt.Errorf("error loading student outcomes for fcar %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var level int
		if err := rows.Scan(&key, &level); err != nil {
			return nil, err
		}
		result[key] = level
	}
	if err := rows.Err(); err != nil {
		if dberrors.IsUndefinedTableError(err) {
			logger.Warn().Str("table", "fcar_student_outcomes").Int64("fcarId", id).Msg("Auxiliary table not provisioned yet, treating as empty")
			return make(map[string]int), nil
		}
		return nil, fmt.Errorf("error loading student outcomes for fcar %d: %w", id, err)
	}

	return result, nil
}

// loadStatus reads the status row onto the entity. A missing row or missing
// table leaves the FCAR in Draft. Status comments are mirrored back into the
// improvement-actions map under the reserved key.
func (r *FCARRepository) loadStatus(ctx context.Context, fcar *models.FCAR) error {
	var status, comments string
	err := r.db.QueryRow(ctx,
		`SELECT status, comments FROM fcar_status WHERE fcar_id = $1`, fcar.ID,
	).Scan(&status, &comments)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		fcar.Status = models.StatusDraft
	case dberrors.IsUndefinedTableError(err):
		logger.Warn().Str("table", "fcar_status").Int64("fcarId", fcar.ID).Msg("Status table not provisioned yet, treating as Draft")
		fcar.Status = models.StatusDraft
	case err != nil:
		return fmt.Errorf("error loading status for fcar %d: %w", fcar.ID, err)
	default:
		fcar.Status = models.Status(status)
		if comments != "" {
			fcar.SetStatusComments(comments)
		}
	}

	return nil
}

// scanFCAR scans one main-table row into an entity.
func scanFCAR(row pgx.Row) (*models.FCAR, error) {
	var fcar models.FCAR
	err := row.Scan(
		&fcar.ID,
		&fcar.CourseCode,
		&fcar.Semester,
		&fcar.Year,
		&fcar.InstructorID,
		&fcar.DateFilled,
		&fcar.OutcomeID,
		&fcar.IndicatorID,
		&fcar.GoalID,
		&fcar.MethodID,
		&fcar.MethodDesc,
		&fcar.StudentExpectID,
		&fcar.SummaryDesc,
		&fcar.ActionID,
		&fcar.CreatedAt,
		&fcar.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &fcar, nil
}
