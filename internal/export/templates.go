package export

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var folderTemplate = template.Must(template.New("folder.md.tmpl").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"firstLine": firstLine,
}).ParseFS(templateFS, "templates/folder.md.tmpl"))

// TemplateData holds data for folder template rendering
type TemplateData struct {
	FolderName string
	OwnerName  string
	ExportedAt time.Time
	Items      []TemplateItem
}

// TemplateItem is one snippet in its final position.
type TemplateItem struct {
	ID    string `json:"id"`
	SeqNo int    `json:"seqNo"`
	Body  string `json:"body"`
}

// RenderMarkdown renders the folder template with provided data
func RenderMarkdown(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := folderTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func firstLine(body string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	line = strings.TrimSpace(line)
	if len(line) > 72 {
		line = strings.TrimSpace(line[:72]) + "…"
	}
	if line == "" {
		return "(empty)"
	}
	return line
}
