// Package migrations wires golang-migrate execution for the journal schema.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migrations loader
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	dbmigrations "github.com/coachpo/algohost/db/migrations"
	"github.com/coachpo/algohost/internal/infra/telemetry"
	"github.com/coachpo/algohost/internal/observability"
)

// Embedded selects the migrations compiled into the binary.
const Embedded = ""

var (
	errNotDirectory = errors.New("migrations path must be a directory")

	migrationsCounter   metric.Int64Counter
	migrationsCounterMu sync.Once
)

// Apply brings the database reachable via dsn up to the latest migration in
// migrationsDir. An empty migrationsDir uses the embedded migrations.
func Apply(ctx context.Context, dsn, migrationsDir string, logger observability.Logger) error {
	logger = observability.OrNop(logger)
	m, label, closeFn, err := open(ctx, dsn, migrationsDir, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	logger.Info("running database migrations", observability.F("source", label))
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			recordMigrationMetric(ctx, "noop", label)
			logger.Info("database migrations up-to-date")
			return nil
		}
		recordMigrationMetric(ctx, "failed", label)
		return fmt.Errorf("apply migrations: %w", err)
	}
	recordMigrationMetric(ctx, "applied", label)
	logger.Info("database migrations applied successfully")
	return nil
}

// Rollback reverts steps migrations.
func Rollback(ctx context.Context, dsn, migrationsDir string, steps int, logger observability.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	logger = observability.OrNop(logger)
	m, label, closeFn, err := open(ctx, dsn, migrationsDir, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	logger.Info("rolling back database migrations",
		observability.F("source", label),
		observability.F("steps", steps))
	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			recordMigrationMetric(ctx, "noop", label)
			return nil
		}
		recordMigrationMetric(ctx, "failed", label)
		return fmt.Errorf("rollback migrations: %w", err)
	}
	recordMigrationMetric(ctx, "rolled_back", label)
	return nil
}

func open(ctx context.Context, dsn, migrationsDir string, logger observability.Logger) (*migrate.Migrate, string, func(), error) {
	var (
		sourceURL string
		label     = "embedded"
	)
	if strings.TrimSpace(migrationsDir) != Embedded {
		resolvedDir, err := resolveDir(migrationsDir)
		if err != nil {
			return nil, "", nil, err
		}
		sourceURL = fileURL(resolvedDir)
		label = resolvedDir
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open migrations connection: %w", err)
	}
	closeDB := func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("database migrations close", observability.Err(cerr))
		}
	}
	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, "", nil, fmt.Errorf("ping migrations database: %w", err)
	}

	var driverConfig pgxv5.Config
	driver, err := pgxv5.WithInstance(db, &driverConfig)
	if err != nil {
		closeDB()
		return nil, "", nil, fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	var m *migrate.Migrate
	if sourceURL == "" {
		src, serr := iofs.New(dbmigrations.Files, ".")
		if serr != nil {
			closeDB()
			return nil, "", nil, fmt.Errorf("load embedded migrations: %w", serr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "pgx5", driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance(sourceURL, "pgx5", driver)
	}
	if err != nil {
		closeDB()
		return nil, "", nil, fmt.Errorf("initialise migrate instance: %w", err)
	}

	closeFn := func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil {
			logger.Warn("database migrations source close", observability.Err(sourceErr))
		}
		if dbErr != nil {
			logger.Warn("database migrations db close", observability.Err(dbErr))
		}
	}
	return m, label, closeFn, nil
}

func resolveDir(dir string) (string, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return "", fmt.Errorf("migrations path required")
	}

	abs, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("resolve migrations path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("migrations directory: %w", err)
		}
		return "", fmt.Errorf("stat migrations directory: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("migrations directory: %w", errNotDirectory)
	}

	return abs, nil
}

func fileURL(path string) string {
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := new(url.URL)
	u.Scheme = "file"
	u.Path = slashed
	return u.String()
}

func recordMigrationMetric(ctx context.Context, result, source string) {
	migrationsCounterMu.Do(func() {
		meter := otel.Meter("persistence.migrations")
		counter, err := meter.Int64Counter("algohost.db.migrations",
			metric.WithDescription("Migrations executed via golang-migrate"),
			metric.WithUnit("{migration}"))
		if err == nil {
			migrationsCounter = counter
		}
	})
	if migrationsCounter == nil {
		return
	}
	migrationsCounter.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(telemetry.Environment()),
		telemetry.AttrResult.String(result),
		attribute.String("migrations_source", source),
	))
}
