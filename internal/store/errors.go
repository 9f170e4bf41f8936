package store

import (
	"errors"
	"fmt"

	"snipshelf/internal/ordering"
)

var (
	// ErrStaleBatch is returned by the batch writer when at least one row no
	// longer holds the key the batch was planned against.
	ErrStaleBatch = errors.New("stale ordinal batch")
	ErrNotFound   = errors.New("not found")
)

// StaleBatchError reports a batch write that only partly landed: Written rows
// took their new keys, Stale rows had changed since planning and were skipped.
// It matches ErrStaleBatch under errors.Is.
type StaleBatchError struct {
	Scope   ordering.Scope
	Stale   int
	Written int
}

func (e *StaleBatchError) Error() string {
	return fmt.Sprintf("%s: %d of %d rows in %s changed underneath", ErrStaleBatch, e.Stale, e.Stale+e.Written, e.Scope)
}

func (e *StaleBatchError) Unwrap() error {
	return ErrStaleBatch
}

// classifyTxError marks write-write conflicts as ordering.ErrTransactionAborted,
// keeping the driver error in the chain.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ordering.ErrTransactionAborted) {
		return err
	}
	if isPostgresAbort(err) || isSQLiteAbort(err) {
		return fmt.Errorf("%w: %w", ordering.ErrTransactionAborted, err)
	}
	return err
}
