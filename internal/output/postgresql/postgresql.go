package postgresql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // Register the pgx database/sql driver

	"github.com/manifest-network/benchie/internal/models"
	"github.com/manifest-network/benchie/internal/output"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const insertRun = `INSERT INTO benchmark_runs (
	workload, tx_count, completed, vault_address, vault_pubkey,
	start_height, end_height, total_blocks, total_seconds, tx_per_second,
	started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// PostgresOutputHandler stores benchmark results in PostgreSQL.
type PostgresOutputHandler struct {
	db *sql.DB
}

// NewPostgresOutputHandler connects to dsn and brings the schema up to date.
func NewPostgresOutputHandler(ctx context.Context, dsn string) (*PostgresOutputHandler, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresOutputHandler{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Database migrations applied")
	return nil
}

func (h *PostgresOutputHandler) WriteResult(ctx context.Context, result *models.Result) error {
	rec := output.NewRecord(result)
	_, err := h.db.ExecContext(ctx, insertRun,
		rec.Workload, rec.Count, rec.Completed, rec.VaultAddress, rec.VaultPubKey,
		rec.StartHeight, rec.EndHeight, rec.TotalBlocks, rec.TotalSeconds, rec.TxPerSecond,
		rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert benchmark run: %w", err)
	}
	return nil
}

func (h *PostgresOutputHandler) Close() error {
	return h.db.Close()
}
