package seed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	appModels "github.com/eakgun/fcartrack/internal/app/models"
	appRepos "github.com/eakgun/fcartrack/internal/app/repositories"
	"github.com/eakgun/fcartrack/internal/db"
	"github.com/eakgun/fcartrack/internal/pkg/apperrors"
)

// CreateDefaultData creates a sample draft FCAR with an assignment so a fresh
// environment has something to look at. Safe to run repeatedly.
func CreateDefaultData(ctx context.Context, pool db.Pool, lgr zerolog.Logger) error {
	fcarRepo := appRepos.NewFCARRepository(pool)
	assignmentRepo := appRepos.NewAssignmentRepository(pool)

	lgr.Info().Msg("Checking/Creating default data (sample FCAR)...")

	existing, err := fcarRepo.GetByCourseCode(ctx, "CS101")
	if err != nil {
		lgr.Error().Err(err).Msg("Error checking for existing sample FCAR")
		return err
	}
	if len(existing) > 0 {
		lgr.Debug().Msg("Sample FCAR already present, skipping seed")
		return nil
	}

	fcar := appModels.NewFCAR("CS101", appModels.SemesterFall, 2024)
	fcar.InstructorID = 42
	fcar.MethodDesc = "Exam-based assessment"
	fcar.AssessmentMethods["workUsed"] = "Exam 3"
	fcar.AssessmentMethods["level1"] = "5"
	fcar.AssessmentMethods["level2"] = "10"
	fcar.StudentOutcomes["outcome_1"] = 3
	fcar.ImprovementActions["summary"] = "Revisit rubric coverage next term"

	saved, err := fcarRepo.Save(ctx, fcar)
	if err != nil {
		lgr.Error().Err(err).Msg("Error creating sample FCAR")
		return err
	}

	if err := assignmentRepo.Assign(ctx, saved.ID, saved.InstructorID); err != nil && !errors.Is(err, apperrors.ErrAlreadyAssigned) {
		lgr.Error().Err(err).Msg("Error assigning sample instructor")
		return err
	}

	lgr.Info().Int64("fcarId", saved.ID).Msg("Sample FCAR created")
	return nil
}
