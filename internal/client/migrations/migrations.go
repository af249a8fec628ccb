// Package migrations embeds the versioned SQL schema of the local store.
// The goose version of the newest applied file is the schema version.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

// Apply brings db up to the newest embedded schema version and returns it.
// Already-applied versions are skipped, so calling Apply repeatedly is safe.
func Apply(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, Migrations)
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	return provider.GetDBVersion(ctx)
}
