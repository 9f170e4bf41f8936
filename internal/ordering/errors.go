package ordering

import (
	"errors"
	"fmt"
)

var (
	// ErrAnchorNotFound is returned when an insertion anchor is not in the scope.
	ErrAnchorNotFound = errors.New("anchor not found")

	// ErrTransactionAborted is returned by Writer implementations (and the stores
	// behind them) when a write-write conflict aborted the scope transaction. The
	// caller must redo the whole read-plan-write sequence.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrUnkeyedItem is returned by the planner when it is handed a list that has
	// not been through Normalize.
	ErrUnkeyedItem = errors.New("item has no ordinal key")
)

// AnchorNotFoundError carries the anchor id that failed to resolve.
type AnchorNotFoundError struct {
	AnchorID string
	Scope    Scope
}

func (e *AnchorNotFoundError) Error() string {
	return fmt.Sprintf("anchor %q not found in scope %s", e.AnchorID, e.Scope)
}

func (e *AnchorNotFoundError) Unwrap() error {
	return ErrAnchorNotFound
}

// MigrationWriteFailedError describes a backfill whose writes did not land.
// It never escapes MigrateIfNeeded; it is logged and handed to the Observer.
type MigrationWriteFailedError struct {
	Scope   Scope
	Mode    Mode
	Pending int
	Err     error
}

func (e *MigrationWriteFailedError) Error() string {
	return fmt.Sprintf("migration write failed for scope %s (%s, %d pending): %v", e.Scope, e.Mode, e.Pending, e.Err)
}

func (e *MigrationWriteFailedError) Unwrap() error {
	return e.Err
}
