package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"snipshelf/internal/ordering"
	"snipshelf/internal/store"
)

// BackfillStore is what a bulk backfill needs from storage.
type BackfillStore interface {
	ListBackfillScopes(ctx context.Context) ([]ordering.Scope, error)
	ListScopeItems(ctx context.Context, scope ordering.Scope) ([]store.Item, error)
	BatchWriter() ordering.Writer
}

// BackfillReport summarizes one backfill run. Pending counts the key updates
// that were planned; Updated counts those that were written, including the
// rows that landed before a scope went stale.
type BackfillReport struct {
	Scanned int `json:"scanned"`
	Pending int `json:"pending"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type BackfillOptions struct {
	Concurrency int
	DryRun      bool
	Observer    ordering.Observer
}

// Backfill assigns ordinal keys to every scope that still holds legacy rows.
// Scopes are processed concurrently through the batch writer. A scope whose
// write fails is counted and left for the next read or run to retry.
func Backfill(ctx context.Context, st BackfillStore, opts BackfillOptions) (BackfillReport, error) {
	scopes, err := st.ListBackfillScopes(ctx)
	if err != nil {
		return BackfillReport{}, fmt.Errorf("list backfill scopes: %w", err)
	}

	var pending, updated, failed atomic.Int64
	writer := st.BatchWriter()
	counting := ordering.NewBatchWriter(func(ctx context.Context, scope ordering.Scope, updates []ordering.Update) error {
		pending.Add(int64(len(updates)))
		if err := writer.ApplyOrdinals(ctx, scope, updates); err != nil {
			failed.Add(1)
			var stale *store.StaleBatchError
			if errors.As(err, &stale) {
				updated.Add(int64(stale.Written))
			}
			return err
		}
		updated.Add(int64(len(updates)))
		return nil
	})

	migratorOpts := []ordering.MigratorOption{}
	if opts.Observer != nil {
		migratorOpts = append(migratorOpts, ordering.WithObserver(opts.Observer))
	}
	migrator := ordering.NewMigrator(migratorOpts...)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(opts.Concurrency, 1))
	for _, scope := range scopes {
		group.Go(func() error {
			raw, err := st.ListScopeItems(groupCtx, scope)
			if err != nil {
				return fmt.Errorf("load scope %s: %w", scope, err)
			}
			items := store.Ordered(raw)
			if opts.DryRun {
				planned := ordering.PlanBackfill(items)
				if len(planned) > 0 {
					pending.Add(int64(len(planned)))
					log.Printf("backfill: would write %d ordinal keys in scope %s", len(planned), scope)
				}
				return nil
			}
			migrator.MigrateIfNeeded(groupCtx, items, counting)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return BackfillReport{}, err
	}

	report := BackfillReport{
		Scanned: len(scopes),
		Pending: int(pending.Load()),
		Updated: int(updated.Load()),
		Failed:  int(failed.Load()),
	}
	log.Printf("backfill: scanned=%d pending=%d updated=%d failed=%d dry_run=%t",
		report.Scanned, report.Pending, report.Updated, report.Failed, opts.DryRun)
	return report, nil
}
