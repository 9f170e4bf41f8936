package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"snipshelf/internal/store"
)

type MigrateResult struct {
	Driver  string   `json:"driver"`
	Applied []string `json:"applied"`
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply pending schema migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, dir, cmd)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")
	return cmd
}

func runMigrate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	st, cfg, err := opts.Open(ctx)
	if err != nil {
		_ = formatter.Error("STORE_UNAVAILABLE", err.Error())
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer st.Close()

	if dir == "" {
		dir = cfg.MigrationsDir
	}
	formatter.VerboseLog("applying %s migrations (dir=%q)", st.Driver(), dir)
	if err := st.Migrate(ctx, dir); err != nil {
		_ = formatter.Error("MIGRATION_FAILED", err.Error())
		return WrapExitError(ExitFailure, "migrate", err)
	}

	applied, err := store.AppliedMigrations(ctx, st.DB())
	if err != nil {
		return WrapExitError(ExitFailure, "list applied migrations", err)
	}
	result := MigrateResult{Driver: string(st.Driver()), Applied: applied}
	return formatter.Success(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s: %d migrations applied\n", result.Driver, len(result.Applied))
		return err
	})
}
