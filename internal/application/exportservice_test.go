package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repoobserver/internal/application"
	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

type appendCall struct {
	kind       model.SnapshotKind
	records    []model.Record
	observedAt time.Time
}

type memSnapshotStore struct {
	appends []appendCall
	err     error
}

func (s *memSnapshotStore) Append(_ context.Context, kind model.SnapshotKind, records []model.Record, observedAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.appends = append(s.appends, appendCall{kind: kind, records: records, observedAt: observedAt})
	return nil
}

func (s *memSnapshotStore) LoadLatest(_ context.Context, kind model.SnapshotKind) (*model.Snapshot, error) {
	for i := len(s.appends) - 1; i >= 0; i-- {
		if s.appends[i].kind == kind {
			return &model.Snapshot{ObservedAt: s.appends[i].observedAt, Records: s.appends[i].records}, nil
		}
	}
	return nil, driven.ErrNoSnapshot
}

func (s *memSnapshotStore) ListDates(_ context.Context, kind model.SnapshotKind) ([]string, error) {
	dates := []string{}
	for i := len(s.appends) - 1; i >= 0; i-- {
		if s.appends[i].kind == kind {
			dates = append(dates, model.DateKey(s.appends[i].observedAt))
		}
	}
	return dates, nil
}

func (s *memSnapshotStore) LoadByDate(_ context.Context, kind model.SnapshotKind, date string) (*model.Snapshot, error) {
	for i := len(s.appends) - 1; i >= 0; i-- {
		if s.appends[i].kind == kind && model.DateKey(s.appends[i].observedAt) == date {
			return &model.Snapshot{ObservedAt: s.appends[i].observedAt, Records: s.appends[i].records}, nil
		}
	}
	return nil, driven.ErrNoSnapshot
}

func exportSource() *fakeSource {
	return &fakeSource{
		listRepos: func(_ context.Context, account string, _, _ int) ([]driven.RepoRef, error) {
			return repoRefs(account, 0, 3), nil
		},
		getRepo: func(_ context.Context, owner, name string) (*model.Repository, error) {
			repo := &model.Repository{Name: name, FullName: owner + "/" + name, PushedAt: fixedNow.AddDate(0, 0, -40)}
			if name == "repo-001" {
				repo.Private = true
			}
			return repo, nil
		},
	}
}

func TestExportService_WritesClassifiedBatch(t *testing.T) {
	store := &memSnapshotStore{}
	now := fixedNow.Add(750 * time.Millisecond)
	svc := application.NewExportService(
		application.NewFetchService(exportSource(), noRetryExecutor(&sleepRecorder{})),
		store,
		func() time.Time { return now },
	)

	result, err := svc.Export(context.Background(), application.ExportOptions{Account: "octo"})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, fixedNow, result.ObservedAt)

	require.Len(t, store.appends, 1)
	call := store.appends[0]
	assert.Equal(t, model.SnapshotFull, call.kind)
	assert.Equal(t, fixedNow, call.observedAt)
	for _, r := range call.records {
		assert.False(t, r.Private)
		assert.Equal(t, model.BucketOccasional, r.Activity.Bucket)
		assert.Equal(t, 40, r.Activity.DaysSinceActivity)
	}
}

func TestExportService_SummarySharesObservationInstant(t *testing.T) {
	store := &memSnapshotStore{}
	svc := application.NewExportService(
		application.NewFetchService(exportSource(), noRetryExecutor(&sleepRecorder{})),
		store,
		func() time.Time { return fixedNow },
	)

	_, err := svc.Export(context.Background(), application.ExportOptions{Account: "octo", IncludePrivate: true, Summary: true})

	require.NoError(t, err)
	require.Len(t, store.appends, 2)
	assert.Equal(t, model.SnapshotFull, store.appends[0].kind)
	assert.Equal(t, model.SnapshotSummary, store.appends[1].kind)
	assert.Equal(t, store.appends[0].observedAt, store.appends[1].observedAt)
	assert.Len(t, store.appends[1].records, 3)
}

func TestExportService_StoreFailure(t *testing.T) {
	store := &memSnapshotStore{err: errors.New("disk full")}
	svc := application.NewExportService(
		application.NewFetchService(exportSource(), noRetryExecutor(&sleepRecorder{})),
		store,
		nil,
	)

	_, err := svc.Export(context.Background(), application.ExportOptions{Account: "octo"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
