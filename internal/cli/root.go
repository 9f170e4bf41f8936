// Package cli implements shelfctl, the operator command line for snipshelf.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"snipshelf/internal/config"
	"snipshelf/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Open    StoreOpener
}

// StoreOpener connects to the configured store. Tests swap it for a
// throwaway SQLite file.
type StoreOpener func(ctx context.Context) (*store.Store, config.Config, error)

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the shelfctl command tree. A nil open uses the
// environment configuration.
func NewRootCommand(open StoreOpener) *cobra.Command {
	if open == nil {
		open = OpenFromEnv
	}
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "shelfctl",
		Short: "shelfctl - snipshelf operator tool",
		Long:  "Operate a snipshelf store: apply migrations, backfill ordinal keys, inspect scope order.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewBackfillCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))

	return cmd
}

// OpenFromEnv loads the environment configuration and connects to its store.
func OpenFromEnv(ctx context.Context) (*store.Store, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	st, err := store.Connect(ctx, cfg.StoreDriver, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return nil, config.Config{}, err
	}
	return st, cfg, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
