package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"snipshelf/internal/ordering"
)

// ordinalChunk caps the rows written by one UPDATE statement.
const ordinalChunk = 500

// ScopeTx is the view of one scope inside a write transaction.
type ScopeTx interface {
	// LockScope reads every item of the scope and holds it against
	// concurrent writers until the transaction ends.
	LockScope(ctx context.Context, scope ordering.Scope) ([]Item, error)
	InsertItem(ctx context.Context, item Item) error
	// Writer applies ordinal updates inside this transaction.
	Writer() ordering.Writer
}

type scopeTx struct {
	tx     *sql.Tx
	driver Driver
}

// RunInTx runs fn in one transaction and commits when it returns nil.
// Write-write conflicts surface as ordering.ErrTransactionAborted; retrying is
// up to the caller.
func (s *Store) RunInTx(ctx context.Context, fn func(ScopeTx) error) error {
	opts := &sql.TxOptions{}
	if s.driver == DriverPostgres {
		opts.Isolation = sql.LevelSerializable
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return classifyTxError(fmt.Errorf("begin scope tx: %w", err))
	}

	if err := fn(&scopeTx{tx: tx, driver: s.driver}); err != nil {
		_ = tx.Rollback()
		return classifyTxError(err)
	}
	if err := tx.Commit(); err != nil {
		return classifyTxError(fmt.Errorf("commit scope tx: %w", err))
	}
	return nil
}

func (t *scopeTx) LockScope(ctx context.Context, scope ordering.Scope) ([]Item, error) {
	rows, err := t.tx.QueryContext(ctx, t.driver.rebind(`
		SELECT `+itemColumns+`
		FROM items
		WHERE folder_id = ? AND owner_id = ?`+scopeOrder+t.driver.lockClause()), scope.FolderID, scope.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("lock scope %s: %w", scope, err)
	}
	return collectItems(rows)
}

func (t *scopeTx) InsertItem(ctx context.Context, item Item) error {
	return insertItem(ctx, t.tx, t.driver, item)
}

func (t *scopeTx) Writer() ordering.Writer {
	return ordering.NewTransactionWriter(func(ctx context.Context, scope ordering.Scope, updates []ordering.Update) error {
		for _, chunk := range chunkUpdates(updates) {
			query, args := ordinalUpdate(t.driver, scope, chunk, false)
			if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("apply ordinals in %s: %w", scope, err)
			}
		}
		return nil
	})
}

// BatchWriter writes ordinal updates outside any transaction, one statement
// per chunk. A row is only touched while it still holds the key the update
// was computed from; if any row has moved on the writer returns a
// *StaleBatchError and the rows that did match keep their new keys.
func (s *Store) BatchWriter() ordering.Writer {
	return ordering.NewBatchWriter(func(ctx context.Context, scope ordering.Scope, updates []ordering.Update) error {
		stale, written := 0, 0
		for _, chunk := range chunkUpdates(updates) {
			query, args := ordinalUpdate(s.driver, scope, chunk, true)
			result, err := s.db.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("batch ordinals in %s: %w", scope, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("batch ordinals rows: %w", err)
			}
			written += int(affected)
			stale += len(chunk) - int(affected)
		}
		if stale > 0 {
			return &StaleBatchError{Scope: scope, Stale: stale, Written: written}
		}
		return nil
	})
}

func chunkUpdates(updates []ordering.Update) [][]ordering.Update {
	chunks := make([][]ordering.Update, 0, len(updates)/ordinalChunk+1)
	for start := 0; start < len(updates); start += ordinalChunk {
		end := min(start+ordinalChunk, len(updates))
		chunks = append(chunks, updates[start:end])
	}
	return chunks
}

// ordinalUpdate builds a single UPDATE that sets seq_no for every row in
// updates. When guarded, each row must still carry its Prev key.
func ordinalUpdate(driver Driver, scope ordering.Scope, updates []ordering.Update, guarded bool) (string, []any) {
	values := make([]string, 0, len(updates))
	args := make([]any, 0, len(updates)*3+2)
	for _, update := range updates {
		values = append(values, `(CAST(? AS TEXT), CAST(? AS INTEGER), CAST(? AS INTEGER))`)
		var prev any
		if update.Prev != nil {
			prev = *update.Prev
		}
		args = append(args, update.ID, update.Key, prev)
	}
	args = append(args, scope.FolderID, scope.OwnerID)

	match := `SELECT e.item_id FROM expected e`
	if guarded {
		match += ` WHERE e.item_id = items.id AND (e.old_seq = items.seq_no OR (e.old_seq IS NULL AND items.seq_no IS NULL))`
	}

	query := `WITH expected(item_id, new_seq, old_seq) AS (VALUES ` + strings.Join(values, ", ") + `)
		UPDATE items
		SET seq_no = (SELECT e.new_seq FROM expected e WHERE e.item_id = items.id)
		WHERE folder_id = ? AND owner_id = ? AND id IN (` + match + `)`
	return driver.rebind(query), args
}
