package search

import (
	"context"
	"fmt"
	"strings"

	"snipshelf/internal/store"
)

// ItemSearcher is the store query behind SQLFallback.
type ItemSearcher interface {
	SearchItems(ctx context.Context, folderIDs []string, text string, limit int) ([]store.Item, error)
}

// SQLFallback implements Searcher on top of the primary store: Postgres
// full-text search or a LIKE scan on SQLite.
type SQLFallback struct {
	items ItemSearcher
}

func NewSQLFallback(items ItemSearcher) *SQLFallback {
	return &SQLFallback{items: items}
}

// Healthy always returns true: if the store is down, the whole app is down.
func (f *SQLFallback) Healthy() bool {
	return true
}

func (f *SQLFallback) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || len(q.FolderIDs) == 0 {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(q.Offset, 0)

	items, err := f.items.SearchItems(context.Background(), q.FolderIDs, q.Text, limit+offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sql search: %w", err)
	}
	if offset >= len(items) {
		return []Result{}, len(items), nil
	}

	results := make([]Result, 0, len(items)-offset)
	for _, item := range items[offset:] {
		results = append(results, Result{
			ID:       item.ID,
			FolderID: item.FolderID,
			OwnerID:  item.OwnerID,
			Snippet:  excerpt(item.Body, q.Text, 160),
		})
	}
	return results, len(items), nil
}

// excerpt returns up to width bytes of body around the first match of text.
func excerpt(body, text string, width int) string {
	body = strings.TrimSpace(body)
	if len(body) <= width {
		return body
	}
	at := strings.Index(strings.ToLower(body), strings.ToLower(strings.TrimSpace(text)))
	start := 0
	if at > width/4 {
		start = at - width/4
	}
	end := min(start+width, len(body))
	// Avoid cutting a multi-byte rune.
	for start > 0 && !utf8Start(body[start]) {
		start--
	}
	for end < len(body) && !utf8Start(body[end]) {
		end++
	}
	out := body[start:end]
	if start > 0 {
		out = "…" + out
	}
	if end < len(body) {
		out += "…"
	}
	return out
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
