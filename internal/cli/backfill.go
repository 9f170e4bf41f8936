package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"snipshelf/internal/app"
)

type backfillFlags struct {
	dryRun      bool
	concurrency int
}

func NewBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &backfillFlags{}
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Assign ordinal keys to every scope that still has legacy items",
		Long: `Find scopes holding items without an ordinal key and key them in their
canonical order, several scopes at a time. Running it again after a clean run
reports nothing to do.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(rootOpts, flags, cmd)
		},
	}
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "report pending key updates without writing")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "scopes processed in parallel (default SNIPSHELF_BACKFILL_CONCURRENCY)")
	return cmd
}

func runBackfill(opts *RootOptions, flags *backfillFlags, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	st, cfg, err := opts.Open(ctx)
	if err != nil {
		_ = formatter.Error("STORE_UNAVAILABLE", err.Error())
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer st.Close()

	concurrency := flags.concurrency
	if concurrency <= 0 {
		concurrency = cfg.BackfillConcurrency
	}
	formatter.VerboseLog("backfill concurrency=%d dry_run=%t", concurrency, flags.dryRun)

	report, err := app.Backfill(ctx, st, app.BackfillOptions{
		Concurrency: concurrency,
		DryRun:      flags.dryRun,
	})
	if err != nil {
		_ = formatter.Error("BACKFILL_FAILED", err.Error())
		return WrapExitError(ExitFailure, "backfill", err)
	}

	if err := formatter.Success(report, func(w io.Writer) error {
		verb := "updated"
		count := report.Updated
		if flags.dryRun {
			verb = "pending"
			count = report.Pending
		}
		_, err := fmt.Fprintf(w, "scanned %d scopes, %d keys %s, %d scopes failed\n", report.Scanned, count, verb, report.Failed)
		return err
	}); err != nil {
		return err
	}
	if report.Failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d scopes failed to backfill", report.Failed), nil)
	}
	return nil
}
