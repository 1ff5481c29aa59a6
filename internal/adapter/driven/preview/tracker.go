// Package preview implements the IssueTracker port against a local
// directory. Each issue becomes a sanitized HTML page, which lets a sync run
// be inspected without touching the remote tracker.
package preview

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueTracker = (*Tracker)(nil)

const filePerms = 0o644

// Tracker numbers issues locally, starting at 1, and keeps them in memory
// for the lifetime of one run.
type Tracker struct {
	dir string

	mu     sync.Mutex
	issues []issue
}

type issue struct {
	item model.TrackedItem
	body string
	file string
}

// New creates a Tracker writing into dir, creating it if needed.
func New(dir string) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview directory: %w", err)
	}
	return &Tracker{dir: dir}, nil
}

// ListIssues pages over the issues created so far.
func (t *Tracker) ListIssues(_ context.Context, _, _ string, page, perPage int) (driven.IssuePage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if perPage <= 0 || start >= len(t.issues) {
		return driven.IssuePage{}, nil
	}
	end := min(start+perPage, len(t.issues))

	items := make([]model.TrackedItem, 0, end-start)
	for _, is := range t.issues[start:end] {
		items = append(items, is.item)
	}
	return driven.IssuePage{Items: items}, nil
}

// CreateIssue assigns the next local number and writes the preview page.
func (t *Tracker) CreateIssue(_ context.Context, owner, repo, title, body string) (model.TrackedItem, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	number := len(t.issues) + 1
	is := issue{
		item: model.TrackedItem{
			Number: number,
			Title:  title,
			State:  model.IssueStateOpen,
			NodeID: fmt.Sprintf("preview-%d", number),
		},
		body: body,
		file: fmt.Sprintf("%04d-%s.html", number, slug(title)),
	}

	if err := t.write(owner, repo, is); err != nil {
		return model.TrackedItem{}, err
	}
	t.issues = append(t.issues, is)

	slog.Debug("preview issue created", "number", number, "title", title)
	return is.item, nil
}

// UpdateIssueBody rewrites the preview page of an existing issue.
func (t *Tracker) UpdateIssueBody(_ context.Context, owner, repo string, number int, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, err := t.find(number)
	if err != nil {
		return err
	}

	is := t.issues[idx]
	is.body = body
	if err := t.write(owner, repo, is); err != nil {
		return err
	}
	t.issues[idx] = is
	return nil
}

// GetIssue returns a previously created issue.
func (t *Tracker) GetIssue(_ context.Context, _, _ string, number int) (model.TrackedItem, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, err := t.find(number)
	if err != nil {
		return model.TrackedItem{}, err
	}
	return t.issues[idx].item, nil
}

// WriteIndex writes index.html linking every preview page in number order.
func (t *Tracker) WriteIndex(owner, repo string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type link struct {
		Number int
		Title  string
		File   string
	}
	view := struct {
		Container string
		Links     []link
	}{Container: owner + "/" + repo}
	for _, is := range t.issues {
		view.Links = append(view.Links, link{Number: is.item.Number, Title: is.item.Title, File: is.file})
	}

	path := filepath.Join(t.dir, "index.html")
	var sb strings.Builder
	if err := indexTemplate.Execute(&sb, view); err != nil {
		return "", fmt.Errorf("render preview index: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), filePerms); err != nil {
		return "", fmt.Errorf("write preview index: %w", err)
	}
	return path, nil
}

// Len returns the number of issues created so far.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.issues)
}

func (t *Tracker) find(number int) (int, error) {
	idx := number - 1
	if idx < 0 || idx >= len(t.issues) {
		return 0, &driven.APIError{
			StatusCode:    http.StatusNotFound,
			Message:       fmt.Sprintf("preview issue #%d not found", number),
			RateRemaining: -1,
		}
	}
	return idx, nil
}

func (t *Tracker) write(owner, repo string, is issue) error {
	view := struct {
		Container string
		Number    int
		Title     string
		Body      template.HTML
	}{
		Container: owner + "/" + repo,
		Number:    is.item.Number,
		Title:     is.item.Title,
		// renderMarkdown output has been through the sanitizer.
		Body: template.HTML(renderMarkdown(is.body)), //nolint:gosec
	}

	var sb strings.Builder
	if err := pageTemplate.Execute(&sb, view); err != nil {
		return fmt.Errorf("render preview #%d: %w", is.item.Number, err)
	}

	path := filepath.Join(t.dir, is.file)
	if err := os.WriteFile(path, []byte(sb.String()), filePerms); err != nil {
		return fmt.Errorf("write preview #%d: %w", is.item.Number, err)
	}
	return nil
}

// slug keeps file names portable.
func slug(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>#{{.Number}} {{.Title}}</title></head>
<body>
<p>{{.Container}} #{{.Number}}</p>
<h1>{{.Title}}</h1>
<article>
{{.Body}}
</article>
</body>
</html>
`))

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Container}} preview</title></head>
<body>
<h1>{{.Container}}</h1>
<ol>
{{- range .Links}}
<li><a href="{{.File}}">#{{.Number}} {{.Title}}</a></li>
{{- end}}
</ol>
</body>
</html>
`))
