// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for the
// two supported backends (pure-Go SQLite and Postgres), dataset namespacing,
// and schema migrations.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/bodytemp-bot/internal/domain"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultDataset is the logical dataset holding the user and temperature tables.
const DefaultDataset = "body_temperature_data"

// Options selects and tunes the backing store.
type Options struct {
	Driver  string // sqlite|postgres
	DSN     string // file path / URI for sqlite, connection string for postgres
	Dataset string // table namespace; schema on postgres, prefix on sqlite
	Tracing bool   // install the OpenTelemetry GORM plugin
	Silent  bool   // silence the GORM logger (tests)
}

// Open opens the store selected by opts.Driver and applies pool settings.
func Open(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		NamingStrategy: namingStrategy(opts.Driver, opts.Dataset),
		TranslateError: true,
	}
	if opts.Silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	} else {
		cfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverSQLite, "":
		db, err = openSQLite(opts.DSN, cfg)
	case DriverPostgres:
		db, err = openPostgres(opts.DSN, cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("install gorm tracing: %w", err)
		}
	}
	return db, nil
}

// openSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func openSQLite(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite DSN must not be empty")
	}
	// Fail early if the parent directory of a plain file path does not exist.
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// openPostgres opens a Postgres connection pool.
func openPostgres(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres DSN must not be empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}
	return db, nil
}

// namingStrategy keeps table names singular (user, temperature, ...) and puts
// them inside the dataset: a schema on Postgres, a name prefix on SQLite.
func namingStrategy(driver, dataset string) schema.NamingStrategy {
	ns := schema.NamingStrategy{SingularTable: true}
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return ns
	}
	if strings.EqualFold(driver, DriverPostgres) {
		ns.TablePrefix = dataset + "."
	} else {
		ns.TablePrefix = dataset + "_"
	}
	return ns
}

// AutoMigrate creates or updates the dataset's tables.
func AutoMigrate(db *gorm.DB) error {
	if db.Dialector.Name() == DriverPostgres {
		if ns, ok := db.NamingStrategy.(schema.NamingStrategy); ok && strings.HasSuffix(ns.TablePrefix, ".") {
			schemaName := strings.TrimSuffix(ns.TablePrefix, ".")
			if err := db.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schemaName)).Error; err != nil {
				return fmt.Errorf("create schema %s: %w", schemaName, err)
			}
		}
	}
	return db.AutoMigrate(
		&domain.User{},
		&domain.Temperature{},
		&domain.ProcessedEvent{},
	)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
