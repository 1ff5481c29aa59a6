package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// ExportOptions configures one export run.
type ExportOptions struct {
	Account         string
	IncludePrivate  bool
	IncludeArchived bool
	// Summary also appends a reduced summary batch.
	Summary bool
}

// ExportResult reports what an export wrote.
type ExportResult struct {
	ObservedAt time.Time
	Fetched    int
	Written    int
}

// ExportService fetches, classifies and persists a snapshot.
type ExportService struct {
	fetcher *FetchService
	store   driven.SnapshotStore
	now     func() time.Time
}

// NewExportService creates an ExportService. A nil now defaults to time.Now.
func NewExportService(fetcher *FetchService, store driven.SnapshotStore, now func() time.Time) *ExportService {
	if now == nil {
		now = time.Now
	}
	return &ExportService{fetcher: fetcher, store: store, now: now}
}

// Export fetches every repository of the account, classifies it against one
// observation instant and appends the batch. Full and summary batches share
// that instant.
func (s *ExportService) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	repos, err := s.fetcher.FetchAll(ctx, opts.Account)
	if err != nil {
		return nil, fmt.Errorf("fetching repositories for %s: %w", opts.Account, err)
	}

	observedAt := s.now().UTC().Truncate(time.Second)

	records := make([]model.Record, 0, len(repos))
	for _, repo := range repos {
		records = append(records, ClassifyRepository(repo, observedAt))
	}
	records = FilterRecords(records, opts.IncludePrivate, opts.IncludeArchived)

	if err := s.store.Append(ctx, model.SnapshotFull, records, observedAt); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	if opts.Summary {
		if err := s.store.Append(ctx, model.SnapshotSummary, records, observedAt); err != nil {
			return nil, fmt.Errorf("writing summary snapshot: %w", err)
		}
	}

	slog.Info("snapshot exported",
		"account", opts.Account,
		"observed_at", observedAt.Format(time.RFC3339),
		"fetched", len(repos),
		"written", len(records),
		"summary", opts.Summary,
	)

	return &ExportResult{ObservedAt: observedAt, Fetched: len(repos), Written: len(records)}, nil
}
