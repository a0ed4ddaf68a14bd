package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eakgun/fcartrack/internal/app/access"
	"github.com/eakgun/fcartrack/internal/app/models"
	"github.com/eakgun/fcartrack/internal/pkg/apperrors"
	"github.com/eakgun/fcartrack/internal/pkg/logger"
)

// FCARStore is the slice of the FCAR repository the service depends on.
type FCARStore interface {
	GetByID(ctx context.Context, id int64) (*models.FCAR, error)
	GetByStatus(ctx context.Context, status models.Status) ([]*models.FCAR, error)
	Save(ctx context.Context, fcar *models.FCAR) (*models.FCAR, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status, comments string) error
}

// FCARService defines the review-workflow operations on FCARs
type FCARService interface {
	GetFCAR(ctx context.Context, id int64) (*models.FCAR, error)
	GetFCARsByStatus(ctx context.Context, status models.Status) ([]*models.FCAR, error)
	SaveFCAR(ctx context.Context, fcar *models.FCAR, actor access.Actor) (*models.FCAR, error)
	Submit(ctx context.Context, fcar *models.FCAR, actor access.Actor) error
	Approve(ctx context.Context, fcarID int64, actor access.Actor) error
	Reject(ctx context.Context, fcarID int64, feedback string, actor access.Actor) error
}

// fcarServiceImpl implements the FCARService interface
type fcarServiceImpl struct {
	store    FCARStore
	policy   *access.Policy
	validate *validator.Validate
}

// NewFCARService creates a new FCAR service instance
func NewFCARService(store FCARStore, policy *access.Policy) FCARService {
	return &fcarServiceImpl{
		store:    store,
		policy:   policy,
		validate: validator.New(),
	}
}

// GetFCAR loads one FCAR
func (s *fcarServiceImpl) GetFCAR(ctx context.Context, id int64) (*models.FCAR, error) {
	return s.store.GetByID(ctx, id)
}

// GetFCARsByStatus lists FCARs in the given review state
func (s *fcarServiceImpl) GetFCARsByStatus(ctx context.Context, status models.Status) ([]*models.FCAR, error) {
	return s.store.GetByStatus(ctx, status)
}

// SaveFCAR validates the FCAR's scalar fields and persists it. Professors may
// only save FCARs they own or are assigned to.
func (s *fcarServiceImpl) SaveFCAR(ctx context.Context, fcar *models.FCAR, actor access.Actor) (*models.FCAR, error) {
	if err := s.validateFCAR(fcar); err != nil {
		return nil, err
	}

	allowed, err := s.policy.CanAccess(ctx, actor, fcar)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s %d may not save fcar %d",
			apperrors.ErrPermissionDenied, actor.Role, actor.InstructorID, fcar.ID)
	}

	return s.store.Save(ctx, fcar)
}

// Submit moves a Draft FCAR to Submitted, stamping the filled date. Strict
// policy: submitting from any other state is rejected.
func (s *fcarServiceImpl) Submit(ctx context.Context, fcar *models.FCAR, actor access.Actor) error {
	allowed, err := s.policy.CanAccess(ctx, actor, fcar)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s %d may not submit fcar %d",
			apperrors.ErrPermissionDenied, actor.Role, actor.InstructorID, fcar.ID)
	}

	if fcar.Status != models.StatusDraft {
		return fmt.Errorf("%w: cannot submit fcar %d in status %s",
			apperrors.ErrInvalidStatusTransition, fcar.ID, fcar.Status)
	}

	now := time.Now()
	prevFilled := fcar.DateFilled
	fcar.Status = models.StatusSubmitted
	fcar.DateFilled = &now

	if _, err := s.store.Save(ctx, fcar); err != nil {
		// Keep the entity in step with the rolled-back database state.
		fcar.Status = models.StatusDraft
		fcar.DateFilled = prevFilled
		return err
	}

	logger.Info().Int64("fcarId", fcar.ID).Msg("FCAR submitted for review")
	return nil
}

// Approve sets the FCAR's status to Approved. Admin only; an already-approved
// FCAR can be re-approved idempotently.
func (s *fcarServiceImpl) Approve(ctx context.Context, fcarID int64, actor access.Actor) error {
	if actor.Role != access.RoleAdmin {
		return fmt.Errorf("%w: only admins may approve fcars", apperrors.ErrPermissionDenied)
	}

	if err := s.store.UpdateStatus(ctx, fcarID, models.StatusApproved, ""); err != nil {
		return err
	}

	logger.Info().Int64("fcarId", fcarID).Msg("FCAR approved")
	return nil
}

// Reject sets the FCAR's status to Rejected, recording the feedback as the
// status comment. Admin only; unconditional regardless of prior status.
func (s *fcarServiceImpl) Reject(ctx context.Context, fcarID int64, feedback string, actor access.Actor) error {
	if actor.Role != access.RoleAdmin {
		return fmt.Errorf("%w: only admins may reject fcars", apperrors.ErrPermissionDenied)
	}

	if err := s.store.UpdateStatus(ctx, fcarID, models.StatusRejected, feedback); err != nil {
		return err
	}

	logger.Info().Int64("fcarId", fcarID).Msg("FCAR rejected")
	return nil
}

// validateFCAR validates FCAR scalar fields before any database operation.
// The repository assumes well-typed, pre-validated input.
func (s *fcarServiceImpl) validateFCAR(fcar *models.FCAR) error {
	if fcar == nil {
		return fmt.Errorf("%w: fcar is nil", apperrors.ErrValidationFailed)
	}

	if err := s.validate.Struct(fcar); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidationFailed, err)
	}

	return nil
}
