package app

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"bessanalytics/backend/services/bess-service/internal/config"
	"bessanalytics/backend/services/bess-service/internal/db"
	"bessanalytics/backend/services/bess-service/internal/repository"
)

// Store is an opened asset repository together with its cleanup.
type Store struct {
	Repo repository.Repository
	db   *sql.DB
}

// OpenStore opens the repository selected by cfg.Database.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory asset store, data is lost on exit")
		return &Store{Repo: repository.NewMemoryRepository()}, nil
	}

	sqlDB, err := db.NewPostgres(cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	repo := repository.NewAssetRepository(sqlDB)
	if cfg.Database.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	return &Store{Repo: repo, db: sqlDB}, nil
}

// Close releases the database pool, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
