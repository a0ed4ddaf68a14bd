package bootstrap

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eakgun/fcartrack/internal/app/access"
	appMigrations "github.com/eakgun/fcartrack/internal/app/migrations"
	appRepos "github.com/eakgun/fcartrack/internal/app/repositories"
	appServices "github.com/eakgun/fcartrack/internal/app/services"
	"github.com/eakgun/fcartrack/internal/config"
	"github.com/eakgun/fcartrack/internal/db"
	"github.com/eakgun/fcartrack/internal/pkg/logger"
	"github.com/eakgun/fcartrack/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos       *appRepos.Repositories
	Policy      *access.Policy
	FCARService appServices.FCARService
	Logger      zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	pool := database.Pool

	migrator := appMigrations.NewMigrator(pool)
	if err := migrator.MigrateFromDir(ctx, cfg.Migrations.Dir); err != nil {
		lgr.Error().Err(err).Msg("Failed to run migrations")
		pool.Close()
		return nil, err
	}

	if cfg.Migrations.Seed {
		if err := seed.CreateDefaultData(ctx, pool, lgr); err != nil {
			lgr.Error().Err(err).Msg("Failed to seed default data")
			pool.Close()
			return nil, err
		}
	}

	return pool, nil
}

// SetupDependencies wires repositories, the access policy and the service.
func SetupDependencies(pool db.Pool, lgr zerolog.Logger) *Dependencies {
	repos := appRepos.NewRepositories(pool)
	policy := access.NewPolicy(repos.AssignmentRepository)
	fcarService := appServices.NewFCARService(repos.FCARRepository, policy)

	return &Dependencies{
		Repos:       repos,
		Policy:      policy,
		FCARService: fcarService,
		Logger:      lgr,
	}
}
