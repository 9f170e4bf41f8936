package ordering

import (
	"context"
	"errors"
	"log"
)

// Observer receives one call per migration attempt that issued writes. err is a
// *MigrationWriteFailedError on failure.
type Observer interface {
	ObserveMigration(mode Mode, updates int, err error)
}

// Migrator performs lazy backfill of missing ordinal keys. It holds no scope
// state between calls; retrying after a failed write is simply the next call.
type Migrator struct {
	logger   *log.Logger
	observer Observer
}

// MigratorOption configures a Migrator.
type MigratorOption func(*Migrator)

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) MigratorOption {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver attaches an observer for migration outcomes.
func WithObserver(observer Observer) MigratorOption {
	return func(m *Migrator) {
		m.observer = observer
	}
}

func NewMigrator(opts ...MigratorOption) *Migrator {
	m := &Migrator{logger: log.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MigrateIfNeeded returns the normalized order of items. When every item already
// has a key nothing is written. Otherwise a transaction writer receives every
// key that differs from its normalized value, while a batch writer only
// receives keys for the unkeyed items (see PlanBackfill). A batch runs without
// cross-row atomicity, so it never rewrites a key another writer may have
// just placed.
//
// Write failures are logged and reported to the observer but never returned:
// the normalized order is still correct for the caller, and the next call on
// the same scope sees the same unkeyed rows and tries again.
func (m *Migrator) MigrateIfNeeded(ctx context.Context, items []Item, w Writer) []Item {
	normalized := Normalize(items)
	if len(items) == 0 {
		return normalized
	}
	scope := items[0].Scope

	if dups := DuplicateKeys(items); len(dups) > 0 {
		m.logger.Printf("ordering: scope %s has duplicate ordinal keys %v; resolved by read order", scope, dups)
	}

	if !NeedsBackfill(items) {
		return normalized
	}

	var updates []Update
	if w.Mode() == ModeBatch {
		updates = PlanBackfill(items)
	} else {
		updates = Diff(items, normalized)
	}
	if len(updates) == 0 {
		return normalized
	}

	if err := w.ApplyOrdinals(ctx, scope, updates); err != nil {
		failed := &MigrationWriteFailedError{Scope: scope, Mode: w.Mode(), Pending: len(updates), Err: err}
		m.logger.Printf("ordering: %v (recoverable, will retry on next read)", failed)
		m.observe(w.Mode(), len(updates), failed)
		return normalized
	}

	m.logger.Printf("ordering: backfilled %d ordinal keys in scope %s (%s)", len(updates), scope, w.Mode())
	m.observe(w.Mode(), len(updates), nil)
	return normalized
}

func (m *Migrator) observe(mode Mode, updates int, err error) {
	if m.observer == nil {
		return
	}
	m.observer.ObserveMigration(mode, updates, err)
}

// IsMigrationWriteFailed reports whether err is a MigrationWriteFailedError.
func IsMigrationWriteFailed(err error) bool {
	var target *MigrationWriteFailedError
	return errors.As(err, &target)
}
