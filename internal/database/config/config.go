// Package config provides database configuration management.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appconfig "github.com/festy23/datajpa/internal/config"
	"github.com/festy23/datajpa/internal/database/pool"
	"github.com/festy23/datajpa/pkg/retry"
)

// Driver names a supported database.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// SchemaMode selects how the schema is brought up to date at startup.
type SchemaMode string

// Schema modes. SchemaAuto derives tables from the entity mappings,
// SchemaMigrate applies the versioned SQL migrations, SchemaNone leaves the
// schema alone.
const (
	SchemaAuto    SchemaMode = "auto"
	SchemaMigrate SchemaMode = "migrate"
	SchemaNone    SchemaMode = "none"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid database config")

// Config holds database connection configuration.
type Config struct {
	Driver Driver

	Host     string
	User     string
	Password string
	DBName   string
	Port     string
	SSLMode  string
	TimeZone string

	// SQLitePath is a file path or ":memory:".
	SQLitePath string

	SchemaMode     SchemaMode
	MigrationsPath string

	// LogSQL logs every statement at debug level.
	LogSQL bool
	// SlowThreshold marks statements slower than it as slow; zero disables.
	SlowThreshold time.Duration
}

// BuildDSN constructs PostgreSQL DSN string from configuration.
func BuildDSN(cfg Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode, cfg.TimeZone)
}

// LoadConfigFromEnv loads database configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		Driver:         Driver(appconfig.GetEnv("DB_DRIVER", string(DriverPostgres))),
		Host:           appconfig.GetEnv("DB_HOST", "localhost"),
		User:           appconfig.GetEnv("DB_USER", "postgres"),
		Password:       appconfig.GetEnv("DB_PASSWORD", "postgres"),
		DBName:         appconfig.GetEnv("DB_NAME", "datajpa"),
		Port:           appconfig.GetEnv("DB_PORT", "5432"),
		SSLMode:        appconfig.GetEnv("DB_SSLMODE", "disable"),
		TimeZone:       appconfig.GetEnv("DB_TIMEZONE", "UTC"),
		SQLitePath:     appconfig.GetEnv("DB_SQLITE_PATH", "datajpa.db"),
		SchemaMode:     SchemaMode(appconfig.GetEnv("DB_SCHEMA_MODE", string(SchemaMigrate))),
		MigrationsPath: appconfig.GetEnv("MIGRATIONS_PATH", "migrations"),
		LogSQL:         appconfig.GetEnvBool("DB_LOG_SQL", false),
		SlowThreshold:  appconfig.GetEnvDuration("DB_SLOW_THRESHOLD", 200*time.Millisecond),
	}
}

// Validate checks the driver and schema mode combination.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: DB_SQLITE_PATH must not be empty", ErrInvalidConfig)
		}
		if c.SchemaMode == SchemaMigrate {
			return fmt.Errorf("%w: schema mode %q requires the postgres driver", ErrInvalidConfig, c.SchemaMode)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q (must be: postgres, sqlite)", ErrInvalidConfig, c.Driver)
	}

	switch c.SchemaMode {
	case SchemaAuto, SchemaNone:
	case SchemaMigrate:
		if c.MigrationsPath == "" {
			return fmt.Errorf("%w: MIGRATIONS_PATH must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown schema mode %q (must be: auto, migrate, none)", ErrInvalidConfig, c.SchemaMode)
	}

	if c.SlowThreshold < 0 {
		return fmt.Errorf("%w: DB_SLOW_THRESHOLD must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SanitizeError removes sensitive information (password) from error messages.
func SanitizeError(err error, cfg Config) error {
	if err == nil {
		return nil
	}
	errMsg := err.Error()
	if cfg.Password != "" {
		errMsg = strings.ReplaceAll(errMsg, cfg.Password, "***")
	}
	return fmt.Errorf("failed to connect to database: %s", errMsg)
}

// LoadRetryConfigFromEnv loads the connection retry configuration for driver,
// overridden by environment variables.
func LoadRetryConfigFromEnv(driver Driver) retry.Config {
	cfg := retry.PostgresConfig()
	if driver == DriverSQLite {
		cfg = retry.SQLiteConfig()
	}
	cfg.MaxAttempts = appconfig.GetEnvInt("DB_RETRY_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.InitialDelay = appconfig.GetEnvDuration("DB_RETRY_INITIAL_DELAY", cfg.InitialDelay)
	cfg.MaxDelay = appconfig.GetEnvDuration("DB_RETRY_MAX_DELAY", cfg.MaxDelay)
	cfg.Multiplier = appconfig.GetEnvFloat("DB_RETRY_MULTIPLIER", cfg.Multiplier)
	return cfg
}

// LoadPoolConfigFromEnv loads connection pool configuration for driver.
// SQLite is limited to one open connection so that every statement sees the
// same database, which matters for ":memory:".
func LoadPoolConfigFromEnv(driver Driver) pool.Config {
	cfg := pool.DefaultPoolConfig()
	if driver == DriverSQLite {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		return cfg
	}
	cfg.MaxOpenConns = appconfig.GetEnvInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns)
	cfg.MaxIdleConns = appconfig.GetEnvInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns)
	cfg.ConnMaxLifetime = appconfig.GetEnvDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)
	cfg.ConnMaxIdleTime = appconfig.GetEnvDuration("DB_CONN_MAX_IDLE_TIME", cfg.ConnMaxIdleTime)
	return cfg
}
