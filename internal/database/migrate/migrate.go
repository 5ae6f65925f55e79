// Package migrate brings the database schema up to date.
package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/datajpa/internal/database/config"
)

// Run applies the schema mode of cfg. SchemaAuto derives the tables of models,
// SchemaMigrate applies the SQL migrations in cfg.MigrationsPath.
func Run(db *gorm.DB, cfg config.Config, logger *zap.SugaredLogger, models ...any) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	switch cfg.SchemaMode {
	case config.SchemaNone:
		logger.Infow("schema management disabled")
		return nil
	case config.SchemaAuto:
		if err := AutoMigrate(db, models...); err != nil {
			return err
		}
		logger.Infow("schema auto-migrated", "models", len(models))
		return nil
	case config.SchemaMigrate:
		if err := Migrate(db, cfg.MigrationsPath); err != nil {
			return err
		}
		logger.Infow("migrations applied", "path", cfg.MigrationsPath)
		return nil
	default:
		return fmt.Errorf("%w: unknown schema mode %q", config.ErrInvalidConfig, cfg.SchemaMode)
	}
}

// AutoMigrate creates or alters the tables of models to match their mappings.
func AutoMigrate(db *gorm.DB, models ...any) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto-migrate schema: %w", err)
	}
	return nil
}

// Migrate applies the PostgreSQL migrations in dir using golang-migrate.
func Migrate(db *gorm.DB, dir string) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	migrationsPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for migrations: %w", err)
	}
	if _, statErr := os.Stat(migrationsPath); os.IsNotExist(statErr) {
		return fmt.Errorf("migrations directory does not exist: %s", migrationsPath)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(migrationsPath), "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
