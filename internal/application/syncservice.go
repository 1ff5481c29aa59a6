package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// SyncOptions configures one orchestrator run.
type SyncOptions struct {
	// Owner and Repo name the destination container for tracked items.
	Owner string
	Repo  string
	// ProjectNumber is the board number; 0 disables board integration.
	ProjectNumber int
	StatusField   string

	IncludePrivate  bool
	IncludeArchived bool

	// Pacing is slept between consecutive repositories.
	Pacing time.Duration
	// Cooldown is slept after an item fails on a secondary rate limit.
	Cooldown time.Duration
	// IssuePagePause is slept between issue cache pages.
	IssuePagePause time.Duration
}

// DefaultSyncOptions returns the standard pacing for owner/repo.
func DefaultSyncOptions(owner, repo string) SyncOptions {
	return SyncOptions{
		Owner:          owner,
		Repo:           repo,
		StatusField:    DefaultStatusField,
		Pacing:         3 * time.Second,
		Cooldown:       5 * time.Minute,
		IssuePagePause: 2 * time.Second,
	}
}

// SyncPhase is the orchestrator state.
type SyncPhase int

const (
	PhaseInit SyncPhase = iota
	PhaseCacheBuilt
	PhaseBoardResolved
	PhaseProcessing
	PhaseDone
)

func (p SyncPhase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseCacheBuilt:
		return "cache_built"
	case PhaseBoardResolved:
		return "board_resolved"
	case PhaseProcessing:
		return "processing"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// SyncRun is the state owned by a single orchestrator invocation. The cache
// and board memo are never shared between runs.
type SyncRun struct {
	Phase  SyncPhase
	Cache  *IssueCache
	Board  *model.BoardInfo
	Report model.SyncReport
}

// SyncService mirrors repository records as tracked items and keeps their
// board status in step with the recency bucket.
type SyncService struct {
	tracker driven.IssueTracker
	board   *BoardService // nil disables board integration
	exec    *Executor
	sleep   SleepFunc
}

// SyncOption customizes a SyncService.
type SyncOption func(*SyncService)

// WithSyncSleep replaces the pacing and cooldown sleep.
func WithSyncSleep(sleep SleepFunc) SyncOption {
	return func(s *SyncService) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewSyncService creates a SyncService. board may be nil.
func NewSyncService(tracker driven.IssueTracker, board *BoardService, exec *Executor, opts ...SyncOption) *SyncService {
	s := &SyncService{tracker: tracker, board: board, exec: exec, sleep: Sleep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run mirrors records into the destination container. The issue cache is
// built completely before the first item is touched.
//
// Only a *ConfigurationError from board resolution or a cancelled context is
// returned as an error; per-item failures are logged and counted.
func (s *SyncService) Run(ctx context.Context, records []model.Record, opts SyncOptions) (*SyncRun, error) {
	run := &SyncRun{Phase: PhaseInit}

	filtered := FilterRecords(records, opts.IncludePrivate, opts.IncludeArchived)
	run.Report.Total = len(filtered)
	slog.Info("sync starting",
		"destination", opts.Owner+"/"+opts.Repo,
		"records", len(records),
		"selected", len(filtered),
	)

	run.Cache = BuildIssueCache(ctx, s.tracker, s.exec, opts.Owner, opts.Repo, opts.IssuePagePause, s.sleep)
	run.Phase = PhaseCacheBuilt

	if err := ctx.Err(); err != nil {
		return run, err
	}

	if opts.ProjectNumber > 0 && s.board != nil {
		info, err := s.board.Resolve(ctx, opts.Owner, opts.ProjectNumber, opts.StatusField)
		if err != nil {
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) {
				return run, err
			}
			if ctx.Err() != nil {
				return run, ctx.Err()
			}
			slog.Warn("board resolution failed, continuing without board", "project", opts.ProjectNumber, "error", err)
		} else {
			run.Board = info
			run.Phase = PhaseBoardResolved
		}
	}

	run.Phase = PhaseProcessing
	for i, record := range filtered {
		if i > 0 {
			if err := s.sleep(ctx, opts.Pacing); err != nil {
				return run, err
			}
		}

		slog.Info("syncing repository",
			"repo", record.Name,
			"progress", fmt.Sprintf("%d/%d", i+1, len(filtered)),
		)

		if err := s.syncOne(ctx, run, record, opts); err != nil {
			if ctx.Err() != nil {
				return run, ctx.Err()
			}

			run.Report.Errors++
			slog.Error("repository sync failed", "repo", record.Name, "error", err)

			if ClassifyError(err) == ErrClassSecondary {
				slog.Warn("secondary rate limit, cooling down", "wait", opts.Cooldown)
				if err := s.sleep(ctx, opts.Cooldown); err != nil {
					return run, err
				}
			}
			continue
		}
		run.Report.Processed++
	}

	run.Phase = PhaseDone
	slog.Info("sync finished",
		"total", run.Report.Total,
		"processed", run.Report.Processed,
		"errors", run.Report.Errors,
		"created", run.Report.Created,
		"updated", run.Report.Updated,
		"placed", run.Report.Placed,
	)
	return run, nil
}

func (s *SyncService) syncOne(ctx context.Context, run *SyncRun, record model.Record, opts SyncOptions) error {
	body, err := RenderIssueBody(record)
	if err != nil {
		return err
	}

	item, found := run.Cache.Lookup(record.Name)
	if found {
		err := s.exec.Run(ctx, func(ctx context.Context) error {
			return s.tracker.UpdateIssueBody(ctx, opts.Owner, opts.Repo, item.Number, body)
		})
		if err != nil {
			return fmt.Errorf("updating issue #%d: %w", item.Number, err)
		}
		run.Report.Updated++
		slog.Debug("issue updated", "repo", record.Name, "number", item.Number)
	} else {
		item, err = Do(ctx, s.exec, func(ctx context.Context) (model.TrackedItem, error) {
			return s.tracker.CreateIssue(ctx, opts.Owner, opts.Repo, record.Name, body)
		})
		if err != nil {
			return fmt.Errorf("creating issue: %w", err)
		}
		if item.State == "" {
			item.State = model.IssueStateOpen
		}
		run.Cache.Put(item)
		run.Report.Created++
		slog.Debug("issue created", "repo", record.Name, "number", item.Number)
	}

	if run.Board == nil || item.Closed() {
		return nil
	}

	placed, err := s.place(ctx, run, item, record.Activity.Bucket, opts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("board placement failed", "repo", record.Name, "number", item.Number, "error", err)
		if ClassifyError(err) == ErrClassSecondary {
			slog.Warn("secondary rate limit during placement, cooling down", "wait", opts.Cooldown)
			return s.sleep(ctx, opts.Cooldown)
		}
		return nil
	}
	if placed {
		run.Report.Placed++
	}
	return nil
}

func (s *SyncService) place(ctx context.Context, run *SyncRun, item model.TrackedItem, bucket model.RecencyBucket, opts SyncOptions) (bool, error) {
	if item.NodeID == "" {
		fetched, err := Do(ctx, s.exec, func(ctx context.Context) (model.TrackedItem, error) {
			return s.tracker.GetIssue(ctx, opts.Owner, opts.Repo, item.Number)
		})
		if err != nil {
			return false, fmt.Errorf("fetching issue #%d: %w", item.Number, err)
		}
		item.NodeID = fetched.NodeID
		run.Cache.Put(item)
	}

	return s.board.UpsertPlacement(ctx, run.Board, item.NodeID, bucket)
}
