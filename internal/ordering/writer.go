package ordering

import "context"

// Mode selects how a Writer applies a set of updates.
type Mode int

const (
	// ModeTransaction commits all updates atomically or none. The caller is
	// expected to have read the scope inside the same transaction.
	ModeTransaction Mode = iota + 1
	// ModeBatch applies updates in one round trip without cross-record
	// atomicity. Safe for backfill, not for insertion.
	ModeBatch
)

func (m Mode) String() string {
	switch m {
	case ModeTransaction:
		return "transaction"
	case ModeBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Writer applies ordinal updates for one scope. Implementations return
// ErrTransactionAborted (possibly wrapped) on write-write conflicts.
type Writer interface {
	Mode() Mode
	ApplyOrdinals(ctx context.Context, scope Scope, updates []Update) error
}

// ApplyFunc is the storage primitive behind a Writer.
type ApplyFunc func(ctx context.Context, scope Scope, updates []Update) error

type funcWriter struct {
	mode  Mode
	apply ApplyFunc
}

func (w funcWriter) Mode() Mode { return w.mode }

func (w funcWriter) ApplyOrdinals(ctx context.Context, scope Scope, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	return w.apply(ctx, scope, updates)
}

// NewTransactionWriter wraps a primitive that runs inside an open transaction.
func NewTransactionWriter(apply ApplyFunc) Writer {
	return funcWriter{mode: ModeTransaction, apply: apply}
}

// NewBatchWriter wraps a primitive that applies updates without atomicity.
func NewBatchWriter(apply ApplyFunc) Writer {
	return funcWriter{mode: ModeBatch, apply: apply}
}
