package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"snipshelf/internal/ordering"
)

// Store is the SQL persistence layer shared by the Postgres and SQLite drivers.
type Store struct {
	db     *sql.DB
	driver Driver
}

func New(db *sql.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) q(query string) string {
	return s.driver.rebind(query)
}

func (s *Store) CreateUser(ctx context.Context, user User) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), user.ID, strings.ToLower(strings.TrimSpace(user.Email)), user.DisplayName, user.PasswordHash, createdAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, email, display_name, password_hash, created_at
		FROM users
		WHERE email = ?
	`), strings.ToLower(strings.TrimSpace(email))).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, email, display_name, password_hash, created_at
		FROM users
		WHERE id = ?
	`), userID).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Store) InsertFolder(ctx context.Context, folder Folder) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO folders (id, owner_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`), folder.ID, folder.OwnerID, folder.Name, now, now)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *Store) GetFolder(ctx context.Context, folderID string) (Folder, error) {
	var folder Folder
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, owner_id, name, created_at, updated_at
		FROM folders
		WHERE id = ?
	`), folderID).Scan(&folder.ID, &folder.OwnerID, &folder.Name, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return Folder{}, err
	}
	return folder, nil
}

// ListFoldersForUser returns folders the user owns or has been shared into.
func (s *Store) ListFoldersForUser(ctx context.Context, userID string) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT f.id, f.owner_id, f.name, f.created_at, f.updated_at,
			CASE WHEN f.owner_id = ? THEN 'owner' ELSE COALESCE(fs.role, '') END AS role
		FROM folders f
		LEFT JOIN folder_shares fs ON fs.folder_id = f.id AND fs.user_id = ?
		WHERE f.owner_id = ? OR fs.user_id IS NOT NULL
		ORDER BY f.name ASC, f.id ASC
	`), userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := make([]Folder, 0)
	for rows.Next() {
		var folder Folder
		if err := rows.Scan(&folder.ID, &folder.OwnerID, &folder.Name, &folder.CreatedAt, &folder.UpdatedAt, &folder.Role); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

func (s *Store) ShareFolder(ctx context.Context, share FolderShare) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO folder_shares (folder_id, user_id, role, granted_by, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (folder_id, user_id) DO UPDATE SET role = excluded.role, granted_by = excluded.granted_by
	`), share.FolderID, share.UserID, share.Role, share.GrantedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("share folder: %w", err)
	}
	return nil
}

// FolderRole resolves the user's role on a folder: "owner", a share role, or
// "" when the user has no access. A missing folder yields sql.ErrNoRows.
func (s *Store) FolderRole(ctx context.Context, folderID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT CASE WHEN f.owner_id = ? THEN 'owner' ELSE COALESCE(fs.role, '') END
		FROM folders f
		LEFT JOIN folder_shares fs ON fs.folder_id = f.id AND fs.user_id = ?
		WHERE f.id = ?
	`), userID, userID, folderID).Scan(&role)
	if err != nil {
		return "", err
	}
	return role, nil
}

const itemColumns = `id, folder_id, owner_id, body, seq_no, created_at, updated_at`

// scopeOrder is the read order for a scope. It decides ties between duplicate
// keys, so it must be stable across reads.
const scopeOrder = ` ORDER BY created_at ASC, id ASC`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var seqNo sql.NullInt64
	if err := row.Scan(&item.ID, &item.FolderID, &item.OwnerID, &item.Body, &seqNo, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Item{}, err
	}
	if seqNo.Valid {
		item.SeqNo = ordering.KeyOf(int(seqNo.Int64))
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()
	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (Item, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+itemColumns+` FROM items WHERE id = ?`), itemID)
	return scanItem(row)
}

// ListScopeItems reads every item of a scope, raw: legacy rows keep a nil SeqNo.
func (s *Store) ListScopeItems(ctx context.Context, scope ordering.Scope) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+itemColumns+`
		FROM items
		WHERE folder_id = ? AND owner_id = ?`+scopeOrder), scope.FolderID, scope.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list scope items: %w", err)
	}
	return collectItems(rows)
}

// ListAllItems reads every item, for search reindexing and exports.
func (s *Store) ListAllItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY folder_id, owner_id, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list all items: %w", err)
	}
	return collectItems(rows)
}

// ListFolderScopes returns the owners that have items in a folder.
func (s *Store) ListFolderScopes(ctx context.Context, folderID string) ([]ordering.Scope, error) {
	return s.listScopes(ctx, `SELECT DISTINCT folder_id, owner_id FROM items WHERE folder_id = ? ORDER BY owner_id`, folderID)
}

// ListBackfillScopes returns every scope that still has rows without a seq_no.
func (s *Store) ListBackfillScopes(ctx context.Context) ([]ordering.Scope, error) {
	return s.listScopes(ctx, `SELECT DISTINCT folder_id, owner_id FROM items WHERE seq_no IS NULL ORDER BY folder_id, owner_id`)
}

func (s *Store) listScopes(ctx context.Context, query string, args ...any) ([]ordering.Scope, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	scopes := make([]ordering.Scope, 0)
	for rows.Next() {
		var scope ordering.Scope
		if err := rows.Scan(&scope.FolderID, &scope.OwnerID); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return scopes, nil
}

func (s *Store) UpdateItemBody(ctx context.Context, itemID, body string) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q(`UPDATE items SET body = ?, updated_at = ? WHERE id = ?`), body, time.Now().UTC(), itemID)
	if err != nil {
		return false, fmt.Errorf("update item body: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update item body rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteItem removes one item. Surviving keys are left as they are; the gap is
// closed by the next normalization.
func (s *Store) DeleteItem(ctx context.Context, itemID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM items WHERE id = ?`), itemID)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete item rows: %w", err)
	}
	return affected > 0, nil
}

// InsertLegacyItem writes an item exactly as given, including a nil SeqNo. It
// exists for imports of pre-ordering data; new items go through a scope
// transaction.
func (s *Store) InsertLegacyItem(ctx context.Context, item Item) error {
	return insertItem(ctx, s.db, s.driver, item)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertItem(ctx context.Context, db execer, driver Driver, item Item) error {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := item.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	var seqNo any
	if item.SeqNo != nil {
		seqNo = *item.SeqNo
	}
	_, err := db.ExecContext(ctx, driver.rebind(`
		INSERT INTO items (id, folder_id, owner_id, body, seq_no, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), item.ID, item.FolderID, item.OwnerID, item.Body, seqNo, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// SearchItems is the SQL fallback for snippet search, limited to folderIDs.
func (s *Store) SearchItems(ctx context.Context, folderIDs []string, text string, limit int) ([]Item, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(folderIDs) == 0 {
		return []Item{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	args := make([]any, 0, len(folderIDs)+2)
	var match string
	if s.driver == DriverPostgres {
		match = `fts @@ plainto_tsquery('simple', ?)`
		args = append(args, text)
	} else {
		match = `LOWER(body) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(text))+"%")
	}
	for _, id := range folderIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+itemColumns+`
		FROM items
		WHERE `+match+` AND folder_id IN (`+placeholders(len(folderIDs))+`)
		ORDER BY updated_at DESC, id ASC
		LIMIT ?`), args...)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return collectItems(rows)
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound)
}
