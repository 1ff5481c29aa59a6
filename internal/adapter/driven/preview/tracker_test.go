package preview

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

func readPreview(t *testing.T, dir, file string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, file))
	require.NoError(t, err)
	return string(b)
}

func TestTracker_CreateNumbersLocallyAndWritesPage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "preview")
	tr, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := tr.CreateIssue(ctx, "octo", "tracker", "alpha", "## Description\n\nA **bold** tool")
	require.NoError(t, err)
	second, err := tr.CreateIssue(ctx, "octo", "tracker", "beta/gamma", "body")
	require.NoError(t, err)

	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, model.IssueStateOpen, first.State)
	assert.Equal(t, "preview-1", first.NodeID)
	assert.Equal(t, 2, tr.Len())

	page := readPreview(t, dir, "0001-alpha.html")
	assert.Contains(t, page, "<h2>Description</h2>")
	assert.Contains(t, page, "<strong>bold</strong>")
	assert.Contains(t, page, "octo/tracker #1")

	_, err = os.Stat(filepath.Join(dir, "0002-beta-gamma.html"))
	assert.NoError(t, err)
}

func TestTracker_BodyIsSanitized(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir)
	require.NoError(t, err)

	_, err = tr.CreateIssue(context.Background(), "octo", "tracker", "evil", "hi <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)

	page := readPreview(t, dir, "0001-evil.html")
	assert.NotContains(t, page, "<script>")
	assert.NotContains(t, page, "javascript:")
}

func TestTracker_TitleIsEscaped(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir)
	require.NoError(t, err)

	_, err = tr.CreateIssue(context.Background(), "octo", "tracker", "<b>x</b>", "")
	require.NoError(t, err)

	page := readPreview(t, dir, "0001--b-x--b-.html")
	assert.Contains(t, page, "&lt;b&gt;x&lt;/b&gt;")
}

func TestTracker_UpdateRewritesPage(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tr.CreateIssue(ctx, "octo", "tracker", "alpha", "old body")
	require.NoError(t, err)
	require.NoError(t, tr.UpdateIssueBody(ctx, "octo", "tracker", 1, "new body"))

	page := readPreview(t, dir, "0001-alpha.html")
	assert.Contains(t, page, "new body")
	assert.NotContains(t, page, "old body")
}

func TestTracker_UnknownNumberIsNotFound(t *testing.T) {
	tr, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	err = tr.UpdateIssueBody(ctx, "octo", "tracker", 7, "body")
	var apiErr *driven.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = tr.GetIssue(ctx, "octo", "tracker", 0)
	assert.True(t, errors.As(err, &apiErr))
}

func TestTracker_ListIssuesPages(t *testing.T) {
	tr, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := tr.CreateIssue(ctx, "octo", "tracker", name, "")
		require.NoError(t, err)
	}

	p1, err := tr.ListIssues(ctx, "octo", "tracker", 1, 2)
	require.NoError(t, err)
	p2, err := tr.ListIssues(ctx, "octo", "tracker", 2, 2)
	require.NoError(t, err)
	p3, err := tr.ListIssues(ctx, "octo", "tracker", 3, 2)
	require.NoError(t, err)

	require.Len(t, p1.Items, 2)
	assert.Equal(t, "a", p1.Items[0].Title)
	require.Len(t, p2.Items, 1)
	assert.Equal(t, "c", p2.Items[0].Title)
	assert.Equal(t, 0, p3.RawLen())

	got, err := tr.GetIssue(ctx, "octo", "tracker", 2)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)
}

func TestTracker_WriteIndex(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tr.CreateIssue(ctx, "octo", "tracker", "alpha", "")
	require.NoError(t, err)
	_, err = tr.CreateIssue(ctx, "octo", "tracker", "beta", "")
	require.NoError(t, err)

	path, err := tr.WriteIndex("octo", "tracker")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "index.html"), path)

	index := readPreview(t, dir, "index.html")
	assert.Contains(t, index, `<a href="0001-alpha.html">#1 alpha</a>`)
	assert.Contains(t, index, `<a href="0002-beta.html">#2 beta</a>`)
}

func TestRenderMarkdown_Table(t *testing.T) {
	out := renderMarkdown("| a | b |\n|---|---|\n| 1 | 2 |")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>1</td>")
	assert.Equal(t, "", renderMarkdown(""))
}
