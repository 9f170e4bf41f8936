package store

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("SNIPSHELF_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("SNIPSHELF_TEST_DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	roundTrip(t, ctx, db, DriverPostgres)
}

func TestMigrationsRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "roundtrip.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	roundTrip(t, ctx, db, DriverSQLite)
}

func roundTrip(t *testing.T, ctx context.Context, db *sql.DB, driver Driver) {
	t.Helper()
	fsys, err := MigrationsFS(driver, "")
	if err != nil {
		t.Fatalf("migrations fs: %v", err)
	}

	if err := ApplyMigrations(ctx, db, driver, fsys); err != nil {
		t.Fatalf("apply up migrations (pass 1): %v", err)
	}
	if err := ApplyMigrations(ctx, db, driver, fsys); err != nil {
		t.Fatalf("apply up migrations (repeat): %v", err)
	}

	if err := applyDownMigrations(ctx, db, fsys); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}

	if err := ApplyMigrations(ctx, db, driver, fsys); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}

	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		t.Fatalf("applied migrations: %v", err)
	}
	ups, err := migrationFiles(fsys, ".up.sql")
	if err != nil {
		t.Fatalf("list up files: %v", err)
	}
	if len(applied) != len(ups) {
		t.Fatalf("expected %d applied migrations, got %v", len(ups), applied)
	}
}

func applyDownMigrations(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	downs, err := migrationFiles(fsys, ".down.sql")
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, name := range downs {
		sqlBytes, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(sqlBytes))
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			return err
		}
	}

	return nil
}
