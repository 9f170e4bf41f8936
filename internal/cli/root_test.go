package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipshelf/internal/config"
	"snipshelf/internal/ordering"
	"snipshelf/internal/store"
)

// sqliteOpener reopens the same database file on every call, the way each
// shelfctl invocation connects afresh.
func sqliteOpener(t *testing.T) (StoreOpener, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shelf.db")
	cfg := config.Config{StoreDriver: "sqlite", SQLitePath: path, BackfillConcurrency: 2}
	return func(ctx context.Context) (*store.Store, config.Config, error) {
		st, err := store.Connect(ctx, cfg.StoreDriver, "", cfg.SQLitePath)
		if err != nil {
			return nil, config.Config{}, err
		}
		return st, cfg, nil
	}, path
}

func execute(t *testing.T, open StoreOpener, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedLegacy(t *testing.T, open StoreOpener) ordering.Scope {
	t.Helper()
	ctx := context.Background()
	st, _, err := open(ctx)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.CreateUser(ctx, store.User{ID: "usr_1", Email: "a@example.com", DisplayName: "A"}))
	require.NoError(t, st.InsertFolder(ctx, store.Folder{ID: "fld_1", OwnerID: "usr_1", Name: "One"}))
	base := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"itm_b", "itm_a", "itm_c"} {
		offset := map[string]int{"itm_a": 0, "itm_b": 1, "itm_c": 2}[id]
		require.NoError(t, st.InsertLegacyItem(ctx, store.Item{
			ID:        id,
			FolderID:  "fld_1",
			OwnerID:   "usr_1",
			Body:      "legacy " + id,
			CreatedAt: base.Add(time.Duration(offset) * time.Hour),
		}), "seed %d", i)
	}
	return ordering.Scope{FolderID: "fld_1", OwnerID: "usr_1"}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "shelfctl", cmd.Use)

	for _, name := range []string{"migrate", "backfill", "show"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestBackfillFlags(t *testing.T) {
	cmd := NewRootCommand(nil)
	backfill, _, err := cmd.Find([]string{"backfill"})
	require.NoError(t, err)

	dryRun := backfill.Flags().Lookup("dry-run")
	require.NotNil(t, dryRun)
	assert.Equal(t, "false", dryRun.DefValue)
	require.NotNil(t, backfill.Flags().Lookup("concurrency"))
}

func TestInvalidFormatRejected(t *testing.T) {
	open, _ := sqliteOpener(t)
	_, err := execute(t, open, "--format", "yaml", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMigrateBackfillShow(t *testing.T) {
	open, _ := sqliteOpener(t)

	out, err := execute(t, open, "--format", "json", "migrate")
	require.NoError(t, err)
	var migrated struct {
		Status string        `json:"status"`
		Data   MigrateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &migrated))
	assert.Equal(t, "ok", migrated.Status)
	assert.Equal(t, "sqlite", migrated.Data.Driver)
	assert.Len(t, migrated.Data.Applied, 2)

	seedLegacy(t, open)

	out, err = execute(t, open, "--format", "json", "show", "--folder", "fld_1", "--owner", "usr_1")
	require.NoError(t, err)
	var shown struct {
		Data ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	require.Len(t, shown.Data.Entries, 3)
	assert.Equal(t, "itm_a", shown.Data.Entries[0].ID)
	assert.Nil(t, shown.Data.Entries[0].Stored)
	assert.Equal(t, 3, shown.Data.Pending)

	out, err = execute(t, open, "backfill", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "3 keys pending")

	out, err = execute(t, open, "--format", "json", "backfill")
	require.NoError(t, err)
	var report struct {
		Data struct {
			Scanned int `json:"scanned"`
			Updated int `json:"updated"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Data.Scanned)
	assert.Equal(t, 3, report.Data.Updated)

	out, err = execute(t, open, "backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 0 scopes")

	out, err = execute(t, open, "show", "--folder", "fld_1", "--owner", "usr_1")
	require.NoError(t, err)
	assert.Contains(t, out, "0 keys would change")
}

func TestShowRequiresScopeFlags(t *testing.T) {
	open, _ := sqliteOpener(t)
	_, err := execute(t, open, "show", "--folder", "fld_1")
	require.Error(t, err)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open store", assert.AnError)))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
