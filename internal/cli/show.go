package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"snipshelf/internal/ordering"
	"snipshelf/internal/store"
)

// ShowEntry is one row of a scope listing. Stored is the key currently in the
// database, nil for legacy rows.
type ShowEntry struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Stored   *int   `json:"stored"`
	Body     string `json:"body"`
}

type ShowResult struct {
	Scope   ordering.Scope `json:"scope"`
	Entries []ShowEntry    `json:"entries"`
	Pending int            `json:"pending"`
}

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var scope ordering.Scope
	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Print a scope in display order without writing",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, scope, cmd)
		},
	}
	cmd.Flags().StringVar(&scope.FolderID, "folder", "", "folder id")
	cmd.Flags().StringVar(&scope.OwnerID, "owner", "", "owner user id")
	_ = cmd.MarkFlagRequired("folder")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runShow(opts *RootOptions, scope ordering.Scope, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	st, _, err := opts.Open(ctx)
	if err != nil {
		_ = formatter.Error("STORE_UNAVAILABLE", err.Error())
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer st.Close()

	raw, err := st.ListScopeItems(ctx, scope)
	if err != nil {
		_ = formatter.Error("LIST_FAILED", err.Error())
		return WrapExitError(ExitFailure, "list scope", err)
	}
	stored := store.Ordered(raw)
	normalized := ordering.Normalize(stored)

	storedKeys := make(map[string]*int, len(raw))
	for _, item := range raw {
		storedKeys[item.ID] = item.SeqNo
	}
	result := ShowResult{
		Scope:   scope,
		Entries: make([]ShowEntry, 0, len(normalized)),
		Pending: len(ordering.Diff(stored, normalized)),
	}
	for _, item := range store.FromOrdered(normalized) {
		result.Entries = append(result.Entries, ShowEntry{
			Position: *item.SeqNo,
			ID:       item.ID,
			Stored:   storedKeys[item.ID],
			Body:     item.Body,
		})
	}

	return formatter.Success(result, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "POS\tSTORED\tID\tBODY")
		for _, entry := range result.Entries {
			storedKey := "-"
			if entry.Stored != nil {
				storedKey = fmt.Sprint(*entry.Stored)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", entry.Position, storedKey, entry.ID, headline(entry.Body))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%d items, %d keys would change\n", len(result.Entries), result.Pending)
		return err
	})
}

func headline(body string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	if runes := []rune(line); len(runes) > 60 {
		return string(runes[:57]) + "..."
	}
	return line
}
