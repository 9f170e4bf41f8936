package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Connect opens the backend named by driver: databaseURL for Postgres,
// sqlitePath for SQLite.
func Connect(ctx context.Context, driver, databaseURL, sqlitePath string) (*Store, error) {
	parsed, ok := ParseDriver(driver)
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	var (
		db  *sql.DB
		err error
	)
	switch parsed {
	case DriverSQLite:
		db, err = OpenSQLite(ctx, sqlitePath)
	default:
		db, err = Open(ctx, databaseURL)
	}
	if err != nil {
		return nil, err
	}
	return New(db, parsed), nil
}

// Migrate applies pending up migrations, from dir when set or the embedded set
// for the store's driver otherwise.
func (s *Store) Migrate(ctx context.Context, dir string) error {
	fsys, err := MigrationsFS(s.driver, dir)
	if err != nil {
		return err
	}
	return ApplyMigrations(ctx, s.db, s.driver, fsys)
}
