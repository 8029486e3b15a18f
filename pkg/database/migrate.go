package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

// Migrate applies every pending schema migration.
func Migrate(ctx context.Context, db *sqlx.DB, table string) error {
	if err := configureGoose(table); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.DB, migrationDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, db *sqlx.DB, table string) error {
	if err := configureGoose(table); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, db.DB, migrationDir); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Version reports the current schema version.
func Version(ctx context.Context, db *sqlx.DB, table string) (int64, error) {
	if err := configureGoose(table); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

func configureGoose(table string) error {
	goose.SetBaseFS(migrationFS)
	if table != "" {
		goose.SetTableName(table)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}
