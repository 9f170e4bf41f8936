// Package export renders a folder scope in its normalized order as Markdown or
// JSON, optionally uploading the result to object storage.
package export

import (
	"errors"
	"time"

	"snipshelf/internal/ordering"
)

// Format represents the export output format
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts "markdown", "md" and "json"; empty means markdown.
func ParseFormat(value string) (Format, error) {
	switch value {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains parameters for an export operation
type Request struct {
	Scope      ordering.Scope
	FolderName string
	OwnerName  string
	Format     Format
}

// Result contains the export output. URL is set when the export was uploaded.
type Result struct {
	Data      []byte    `json:"-"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	URL       string    `json:"url,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

var ErrUnsupportedFormat = errors.New("export format unsupported")
