package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"snipshelf/internal/ordering"
	"snipshelf/internal/store"
)

type fakeDataStore struct {
	listScopeItemsFn func(ctx context.Context, scope ordering.Scope) ([]store.Item, error)
}

func (f *fakeDataStore) ListScopeItems(ctx context.Context, scope ordering.Scope) ([]store.Item, error) {
	return f.listScopeItemsFn(ctx, scope)
}

type fakeUploader struct {
	uploadFn func(ctx context.Context, name string, data []byte, contentType string) (string, time.Time, error)
}

func (f *fakeUploader) Upload(ctx context.Context, name string, data []byte, contentType string) (string, time.Time, error) {
	return f.uploadFn(ctx, name, data, contentType)
}

var exportScope = ordering.Scope{FolderID: "fld_1", OwnerID: "usr_1"}

// legacyScope has one keyed row and two rows from before ordering existed.
func legacyScope() *fakeDataStore {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return &fakeDataStore{listScopeItemsFn: func(context.Context, ordering.Scope) ([]store.Item, error) {
		return []store.Item{
			{ID: "itm_old", FolderID: "fld_1", OwnerID: "usr_1", Body: "oldest\nsecond line", CreatedAt: base},
			{ID: "itm_keyed", FolderID: "fld_1", OwnerID: "usr_1", Body: "keyed", SeqNo: ordering.KeyOf(4), CreatedAt: base.Add(time.Hour)},
			{ID: "itm_new", FolderID: "fld_1", OwnerID: "usr_1", Body: "newer", CreatedAt: base.Add(2 * time.Hour)},
		}, nil
	}}
}

func fixedNow(svc *Service) {
	svc.now = func() time.Time { return time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC) }
}

func TestExportMarkdownUsesNormalizedOrder(t *testing.T) {
	svc := NewService(legacyScope(), nil)
	fixedNow(svc)

	result, err := svc.Export(context.Background(), Request{Scope: exportScope, FolderName: "Go Tricks", Format: FormatMarkdown})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "Go-Tricks.md" {
		t.Errorf("unexpected filename %q", result.Filename)
	}
	if result.URL != "" {
		t.Errorf("inline export should not carry a URL, got %q", result.URL)
	}

	md := string(result.Data)
	keyed := strings.Index(md, "## 1. keyed")
	old := strings.Index(md, "## 2. oldest")
	newer := strings.Index(md, "## 3. newer")
	if keyed < 0 || old < 0 || newer < 0 {
		t.Fatalf("missing headings in:\n%s", md)
	}
	if !(keyed < old && old < newer) {
		t.Errorf("expected keyed items before legacy items by creation time:\n%s", md)
	}
	if !strings.Contains(md, "# Go Tricks") || !strings.Contains(md, "2024-03-02 10:00 UTC") {
		t.Errorf("missing header or timestamp:\n%s", md)
	}
}

func TestExportJSON(t *testing.T) {
	svc := NewService(legacyScope(), nil)
	fixedNow(svc)

	result, err := svc.Export(context.Background(), Request{Scope: exportScope, FolderName: "Go Tricks", Format: FormatJSON})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	var payload struct {
		FolderID string         `json:"folderId"`
		Items    []TemplateItem `json:"items"`
	}
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if payload.FolderID != "fld_1" || len(payload.Items) != 3 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	want := []string{"itm_keyed", "itm_old", "itm_new"}
	for i, item := range payload.Items {
		if item.ID != want[i] || item.SeqNo != i+1 {
			t.Errorf("item %d = %+v, want %s at %d", i, item, want[i], i+1)
		}
	}
}

func TestExportUploadsWhenConfigured(t *testing.T) {
	var gotName, gotType string
	uploader := &fakeUploader{uploadFn: func(_ context.Context, name string, data []byte, contentType string) (string, time.Time, error) {
		gotName, gotType = name, contentType
		return "https://objects.example/" + name, time.Date(2024, 3, 2, 10, 15, 0, 0, time.UTC), nil
	}}
	svc := NewService(legacyScope(), uploader)
	fixedNow(svc)

	result, err := svc.Export(context.Background(), Request{Scope: exportScope, FolderName: "Go Tricks", Format: FormatJSON})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasPrefix(gotName, "fld_1/usr_1/") || !strings.HasSuffix(gotName, "Go-Tricks.json") {
		t.Errorf("unexpected object name %q", gotName)
	}
	if gotType != "application/json" {
		t.Errorf("unexpected content type %q", gotType)
	}
	if result.URL == "" || result.ExpiresAt.IsZero() {
		t.Errorf("expected presigned URL and expiry, got %+v", result)
	}
}

func TestExportErrors(t *testing.T) {
	failing := &fakeDataStore{listScopeItemsFn: func(context.Context, ordering.Scope) ([]store.Item, error) {
		return nil, errors.New("db down")
	}}
	if _, err := NewService(failing, nil).Export(context.Background(), Request{Scope: exportScope}); err == nil {
		t.Fatal("expected store error")
	}

	_, err := NewService(legacyScope(), nil).Export(context.Background(), Request{Scope: exportScope, Format: "pdf"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat from ParseFormat, got %v", err)
	}
}

func TestRenderMarkdownEmptyFolder(t *testing.T) {
	md, err := RenderMarkdown(TemplateData{FolderName: "Empty", ExportedAt: time.Now()})
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if !strings.Contains(md, "_No snippets yet._") {
		t.Errorf("expected empty marker, got:\n%s", md)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Folder v1.2", "My-Folder-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "folder"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("  \n"); got != "(empty)" {
		t.Errorf("blank body = %q", got)
	}
	if got := firstLine("title\nrest"); got != "title" {
		t.Errorf("multi-line body = %q", got)
	}
	long := strings.Repeat("x", 100)
	if got := firstLine(long); !strings.HasSuffix(got, "…") || len(got) > 80 {
		t.Errorf("long body = %q", got)
	}
}
