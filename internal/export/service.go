package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"snipshelf/internal/ordering"
	"snipshelf/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	ListScopeItems(ctx context.Context, scope ordering.Scope) ([]store.Item, error)
}

// Service renders folder exports. Exports never write ordinal keys: legacy
// scopes are rendered in their normalized order as-is.
type Service struct {
	store    DataStore
	uploader Uploader
	now      func() time.Time
}

// NewService creates a new export service. uploader may be nil, in which case
// results are returned inline.
func NewService(store DataStore, uploader Uploader) *Service {
	return &Service{store: store, uploader: uploader, now: time.Now}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	raw, err := s.store.ListScopeItems(ctx, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("list scope items: %w", err)
	}
	ordered := store.FromOrdered(ordering.Normalize(store.Ordered(raw)))

	data := TemplateData{
		FolderName: req.FolderName,
		OwnerName:  req.OwnerName,
		ExportedAt: s.now().UTC(),
		Items:      make([]TemplateItem, 0, len(ordered)),
	}
	for _, item := range ordered {
		data.Items = append(data.Items, TemplateItem{ID: item.ID, SeqNo: *item.SeqNo, Body: item.Body})
	}

	var result *Result
	switch req.Format {
	case FormatMarkdown, "":
		markdown, err := RenderMarkdown(data)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		result = &Result{Data: []byte(markdown), Filename: sanitizeFilename(req.FolderName) + ".md", MimeType: "text/markdown; charset=utf-8"}
	case FormatJSON:
		payload, err := json.MarshalIndent(struct {
			Folder     string         `json:"folder"`
			FolderID   string         `json:"folderId"`
			OwnerID    string         `json:"ownerId"`
			ExportedAt time.Time      `json:"exportedAt"`
			Items      []TemplateItem `json:"items"`
		}{req.FolderName, req.Scope.FolderID, req.Scope.OwnerID, data.ExportedAt, data.Items}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode export: %w", err)
		}
		result = &Result{Data: payload, Filename: sanitizeFilename(req.FolderName) + ".json", MimeType: "application/json"}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	if s.uploader == nil {
		return result, nil
	}
	objectName := fmt.Sprintf("%s/%s/%d-%s", req.Scope.FolderID, req.Scope.OwnerID, data.ExportedAt.Unix(), result.Filename)
	url, expiresAt, err := s.uploader.Upload(ctx, objectName, result.Data, result.MimeType)
	if err != nil {
		return nil, err
	}
	result.URL = url
	result.ExpiresAt = expiresAt
	return result, nil
}

func sanitizeFilename(title string) string {
	result := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result = append(result, r)
		case r == ' ':
			result = append(result, '-')
		case r == '-', r == '_':
			result = append(result, r)
		}
	}

	if len(result) > 50 {
		result = result[:50]
	}

	if len(result) == 0 {
		return "folder"
	}
	return string(result)
}
