package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

var ErrUnknownMigrateCommand = errors.New("unknown migrate command")

// Migrate runs a goose command ("up", "down" or "status") against the embedded migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string) error {
	switch command {
	case "up", "down", "status":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMigrateCommand, command)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if err := goose.RunContext(ctx, command, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}

	return nil
}
