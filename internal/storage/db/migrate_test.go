package db

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		require.NoError(t, err)

		assert.True(t, strings.HasSuffix(entry.Name(), ".sql"), entry.Name())
		assert.Contains(t, string(content), "-- +goose Up", entry.Name())
		assert.Contains(t, string(content), "-- +goose Down", entry.Name())
	}
}

func TestConnectionString(t *testing.T) {
	t.Run("Should build a postgres url", func(t *testing.T) {
		assert.Equal(t,
			"postgres://user:secret@db:5432/catalog?application_name=product-catalog&sslmode=disable",
			connectionString(config.Postgres{
				Host:     "db",
				Port:     5432,
				User:     "user",
				Password: "secret",
				DB:       "catalog",
				SSLMode:  "disable",
			}),
		)
	})

	t.Run("Should escape credentials", func(t *testing.T) {
		connStr := connectionString(config.Postgres{
			Host:     "db",
			Port:     5432,
			User:     "user",
			Password: "p@ss/word",
			DB:       "catalog",
			SSLMode:  "require",
		})

		cfg, err := pgxpool.ParseConfig(connStr)
		require.NoError(t, err)
		assert.Equal(t, "p@ss/word", cfg.ConnConfig.Password)
		assert.Equal(t, "db", cfg.ConnConfig.Host)
		assert.Equal(t, "catalog", cfg.ConnConfig.Database)
	})
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	err := Migrate(context.Background(), nil, "sideways")
	assert.ErrorIs(t, err, ErrUnknownMigrateCommand)
}
