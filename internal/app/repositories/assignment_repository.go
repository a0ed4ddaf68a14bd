package repositories

import (
	"context"
	"fmt"

	"github.com/eakgun/fcartrack/internal/app/models"
	"github.com/eakgun/fcartrack/internal/db"
	"github.com/eakgun/fcartrack/internal/pkg/apperrors"
	"github.com/eakgun/fcartrack/internal/pkg/dberrors"
)

// AssignmentRepository handles database operations for instructor↔FCAR
// assignments. It implements access.AssignmentChecker.
type AssignmentRepository struct {
	db db.Pool
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db db.Pool) *AssignmentRepository {
	return &AssignmentRepository{
		db: db,
	}
}

// Assign links an instructor to an FCAR
func (r *AssignmentRepository) Assign(ctx context.Context, fcarID, instructorID int64) error {
	query := `
		INSERT INTO fcar_assignments (fcar_id, instructor_id)
		VALUES ($1, $2)
	`

	if _, err := r.db.Exec(ctx, query, fcarID, instructorID); err != nil {
		if dberrors.IsDuplicateKeyError(err) {
			return apperrors.ErrAlreadyAssigned
		}
		return fmt.Errorf("error assigning instructor %d to fcar %d: %w", instructorID, fcarID, err)
	}

	return nil
}

// Unassign removes the link between an instructor and an FCAR
func (r *AssignmentRepository) Unassign(ctx context.Context, fcarID, instructorID int64) error {
	query := `
		DELETE FROM fcar_assignments
		WHERE fcar_id = $1 AND instructor_id = $2
	`

	tag, err := r.db.Exec(ctx, query, fcarID, instructorID)
	if err != nil {
		return fmt.Errorf("error unassigning instructor %d from fcar %d: %w", instructorID, fcarID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAssignmentNotFound
	}

	return nil
}

// IsAssigned reports whether the instructor is assigned to the FCAR
func (r *AssignmentRepository) IsAssigned(ctx context.Context, fcarID, instructorID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM fcar_assignments
			WHERE fcar_id = $1 AND instructor_id = $2
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, fcarID, instructorID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking assignment: %w", err)
	}

	return exists, nil
}

// GetByInstructorID retrieves all assignments for an instructor
func (r *AssignmentRepository) GetByInstructorID(ctx context.Context, instructorID int64) ([]*models.Assignment, error) {
	query := `
		SELECT assignment_id, fcar_id, instructor_id, created_at
		FROM fcar_assignments
		WHERE instructor_id = $1
		ORDER BY assignment_id
	`

	rows, err := r.db.Query(ctx, query, instructorID)
	if err != nil {
		return nil, fmt.Errorf("error querying assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.Assignment
	for rows.Next() {
		var assignment models.Assignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.FCARID,
			&assignment.InstructorID,
			&assignment.CreatedAt,
		); err != nil {
			return nil, err
		}
		assignments = append(assignments, &assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}
