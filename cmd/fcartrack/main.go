package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/eakgun/fcartrack/internal/app/models"
	"github.com/eakgun/fcartrack/internal/bootstrap"
	"github.com/eakgun/fcartrack/internal/pkg/logger"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize configuration")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := bootstrap.SetupDatabase(ctx, cfg, lgr)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to set up database")
		os.Exit(1)
	}
	defer pool.Close()

	deps := bootstrap.SetupDependencies(pool, lgr)

	drafts, err := deps.Repos.FCARRepository.GetByStatus(ctx, models.StatusDraft)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to query draft FCARs")
		os.Exit(1)
	}

	lgr.Info().Int("draftCount", len(drafts)).Msg("Database ready")
}
