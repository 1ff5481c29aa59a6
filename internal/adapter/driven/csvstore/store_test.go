package csvstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repoobserver/internal/adapter/driven/csvstore"
	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRecord(name string) model.Record {
	issue := day(2025, 5, 28)
	return model.Record{
		Repository: model.Repository{
			Name:                 name,
			FullName:             "octo/" + name,
			Description:          "A tool, with \"quotes\"",
			Topics:               []string{"go", "cli"},
			License:              "MIT License",
			Language:             "Go",
			Homepage:             "https://example.dev",
			DefaultBranch:        "main",
			URL:                  "https://github.com/octo/" + name,
			Stars:                1234,
			Forks:                56,
			Watchers:             1234,
			OpenIssues:           7,
			ClosedIssues:         89,
			Commits:              4321,
			SizeKB:               3072,
			HasIssues:            true,
			HasWiki:              false,
			HasProjects:          true,
			Archived:             false,
			Private:              true,
			CreatedAt:            day(2019, 1, 2),
			UpdatedAt:            day(2025, 5, 30),
			PushedAt:             day(2025, 5, 20),
			LatestIssueUpdatedAt: &issue,
			LatestRelease:        &model.Release{TagName: "v1.0.0", PublishedAt: day(2024, 12, 24)},
		},
		Activity: model.ActivityInfo{
			LastActivityAt:    issue,
			Source:            model.ActivityIssueUpdate,
			DaysSinceActivity: 4,
			Bucket:            model.BucketFrequent,
		},
	}
}

func TestDatedPath_UsesDisplayZoneDate(t *testing.T) {
	observed := time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC)

	got := csvstore.DatedPath(filepath.Join("out", "repositories.csv"), observed)

	assert.Equal(t, filepath.Join("out", "repositories", "2025", "07", "repositories-2025-07-01.csv"), got)
}

func TestStore_RoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "repositories.csv")
	store := csvstore.New(base)
	ctx := context.Background()
	observed := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

	in := []model.Record{sampleRecord("alpha"), sampleRecord("beta")}
	require.NoError(t, store.Append(ctx, model.SnapshotFull, in, observed))

	snap, err := store.LoadLatest(ctx, model.SnapshotFull)
	require.NoError(t, err)

	assert.True(t, observed.Equal(snap.ObservedAt))
	if diff := cmp.Diff(in, snap.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_PlaceholdersRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "repositories.csv")
	store := csvstore.New(base)
	ctx := context.Background()
	observed := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

	bare := model.Record{
		Repository: model.Repository{Name: "bare", FullName: "octo/bare", Topics: []string{}, PushedAt: day(2020, 1, 1)},
		Activity:   model.ActivityInfo{LastActivityAt: day(2020, 1, 1), Source: model.ActivityPush, DaysSinceActivity: 1978, Bucket: model.BucketStale},
	}
	require.NoError(t, store.Append(ctx, model.SnapshotFull, []model.Record{bare}, observed))

	snap, err := store.LoadLatest(ctx, model.SnapshotFull)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)

	if diff := cmp.Diff(bare, snap.Records[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_AppendSameDayWritesSingleHeaderAndLatestWins(t *testing.T) {
	base := filepath.Join(t.TempDir(), "repositories.csv")
	store := csvstore.New(base)
	ctx := context.Background()

	first := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	second := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)

	older := sampleRecord("alpha")
	older.Stars = 1
	require.NoError(t, store.Append(ctx, model.SnapshotFull, []model.Record{older, sampleRecord("gone")}, first))
	require.NoError(t, store.Append(ctx, model.SnapshotFull, []model.Record{sampleRecord("alpha")}, second))

	content, err := os.ReadFile(csvstore.DatedPath(base, second))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "observed_at_utc"))

	snap, err := store.LoadLatest(ctx, model.SnapshotFull)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "alpha", snap.Records[0].Name)
	assert.Equal(t, 1234, snap.Records[0].Stars)
	assert.True(t, second.Equal(snap.ObservedAt))
}

func TestStore_LoadLatestPicksNewestDatedFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "repositories.csv")
	store := csvstore.New(base)
	ctx := context.Background()

	newer := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
	older := time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, model.SnapshotFull, []model.Record{sampleRecord("new")}, newer))
	require.NoError(t, store.Append(ctx, model.SnapshotFull, []model.Record{sampleRecord("old")}, older))

	snap, err := store.LoadLatest(ctx, model.SnapshotFull)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "new", snap.Records[0].Name)
}

func TestStore_SummaryUsesSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "repositories.csv")
	store := csvstore.New(base)
	ctx := context.Background()
	observed := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, model.SnapshotSummary, []model.Record{sampleRecord("alpha")}, observed))

	summaryPath := filepath.Join(dir, "repositories-summary", "2025", "06", "repositories-summary-2025-06-01.csv")
	content, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content),
		"observed_at_utc,observed_at_local,name,status,stars,forks,open_issues,closed_issues,commits,language,pushed_date,url\n"))

	_, err = store.LoadLatest(ctx, model.SnapshotFull)
	assert.ErrorIs(t, err, driven.ErrNoSnapshot)

	snap, err := store.LoadLatest(ctx, model.SnapshotSummary)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, 1234, snap.Records[0].Stars)
	assert.Equal(t, 4321, snap.Records[0].Commits)
	assert.Equal(t, model.BucketFrequent, snap.Records[0].Activity.Bucket)
}

func TestStore_InputPathFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "manual.csv")
	content := "observed_at_utc,name,full_name,status,stars,has_issues,visibility\n" +
		"2025-06-01T00:00:00Z,alpha,octo/alpha,Rarely updated,3,yes,public\n" +
		"2025-06-02T00:00:00Z,beta,octo/beta,Not a status,4,no,private\n" +
		"2025-06-02T00:00:00Z,gamma,octo/gamma,stale,5,no,public\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	store := csvstore.New(filepath.Join(dir, "repositories.csv")).WithInputPath(file)
	snap, err := store.LoadLatest(context.Background(), model.SnapshotFull)

	require.NoError(t, err)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "beta", snap.Records[0].Name)
	assert.Equal(t, model.BucketUnknown, snap.Records[0].Activity.Bucket)
	assert.True(t, snap.Records[0].Private)
	assert.Equal(t, model.BucketStale, snap.Records[1].Activity.Bucket)
	assert.Equal(t, 5, snap.Records[1].Stars)
}

func TestStore_LoadLatestMissingDirectory(t *testing.T) {
	store := csvstore.New(filepath.Join(t.TempDir(), "repositories.csv"))

	_, err := store.LoadLatest(context.Background(), model.SnapshotFull)

	assert.ErrorIs(t, err, driven.ErrNoSnapshot)
}

func TestStore_ListDatesNewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "repositories.csv")
	store := csvstore.New(base)
	ctx := context.Background()

	for _, observed := range []time.Time{
		time.Date(2025, 6, 28, 3, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 2, 3, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC),
		// 20:00 UTC is already the next day in the display zone.
		time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC),
	} {
		require.NoError(t, store.Append(ctx, model.SnapshotSummary, []model.Record{sampleRecord("alpha")}, observed))
	}
	require.NoError(t, store.Append(ctx, model.SnapshotFull, []model.Record{sampleRecord("alpha")}, time.Date(2025, 8, 1, 3, 0, 0, 0, time.UTC)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repositories-summary", "notes.csv"), []byte("x\n"), 0o644))

	dates, err := store.ListDates(ctx, model.SnapshotSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-02", "2025-07-01", "2025-06-28"}, dates)

	dates, err = store.ListDates(ctx, model.SnapshotFull)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-01"}, dates)
}

func TestStore_ListDatesMissingDirectoryIsEmpty(t *testing.T) {
	store := csvstore.New(filepath.Join(t.TempDir(), "repositories.csv"))

	dates, err := store.ListDates(context.Background(), model.SnapshotSummary)

	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestStore_LoadByDateKeepsLatestBatchOfThatDay(t *testing.T) {
	base := filepath.Join(t.TempDir(), "repositories.csv")
	store := csvstore.New(base)
	ctx := context.Background()

	morning := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	noon := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	nextDay := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, model.SnapshotSummary, []model.Record{sampleRecord("early")}, morning))
	require.NoError(t, store.Append(ctx, model.SnapshotSummary, []model.Record{sampleRecord("a"), sampleRecord("b")}, noon))
	require.NoError(t, store.Append(ctx, model.SnapshotSummary, []model.Record{sampleRecord("tomorrow")}, nextDay))

	snap, err := store.LoadByDate(ctx, model.SnapshotSummary, "2025-06-01")
	require.NoError(t, err)
	assert.True(t, noon.Equal(snap.ObservedAt))
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "a", snap.Records[0].Name)
	assert.Equal(t, 4321, snap.Records[0].Commits)

	_, err = store.LoadByDate(ctx, model.SnapshotSummary, "2025-05-31")
	assert.ErrorIs(t, err, driven.ErrNoSnapshot)

	_, err = store.LoadByDate(ctx, model.SnapshotSummary, "June 1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, driven.ErrNoSnapshot)
}
