// Package database provides the PostgreSQL and SQLite storage backends for
// datasets, check results and reports. Both backends replace a dataset's
// checks and upsert its report transactionally, so readers see either the
// previous complete result set or the new one.
package database

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/csvquality/internal/config"
	"github.com/JonMunkholm/csvquality/internal/core"
)

// Store is a core.Store that owns its database connections.
type Store interface {
	core.Store

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	// MigrationVersion returns the latest applied migration version.
	MigrationVersion(ctx context.Context) (int64, error)

	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	case config.DriverSQLite, "":
		store, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// checkOrder is the position of each check kind in listings.
func checkOrder(k core.CheckKind) int {
	switch k {
	case core.CheckMissing:
		return 0
	case core.CheckDuplicates:
		return 1
	default:
		return 2
	}
}
