package erp

import (
	"context"
	"embed"

	"github.com/acceslibre/erpsync/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies the directory schema: reference tables, establishments
// and the geocode cache.
func Migrate(ctx context.Context, pool db.Pool) error {
	return db.Migrate(ctx, pool, migrationFS, "migrations")
}
