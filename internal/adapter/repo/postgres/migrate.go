package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	// Registers the "pgx" driver with database/sql, used only for migrations.
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// OpenMigrationDB opens a database/sql handle over the pgx stdlib driver,
// suitable only for running goose migrations (the rest of the application
// talks to Postgres through the pgxpool.Pool from NewPool).
func OpenMigrationDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("op=postgres.migrate.open: %w", err)
	}
	return db, nil
}

// Migrate applies all pending schema migrations using the given *sql.DB.
// Safe to call on every coordinator/worker startup: goose tracks applied
// versions in its own bookkeeping table and is a no-op once current.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("op=postgres.migrate.dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("op=postgres.migrate.up: %w", err)
	}
	return nil
}
