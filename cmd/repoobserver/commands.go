package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/repoobserver/internal/adapter/driven/csvstore"
	githubadapter "github.com/ericfisherdev/repoobserver/internal/adapter/driven/github"
	"github.com/ericfisherdev/repoobserver/internal/adapter/driven/preview"
	sqliteadapter "github.com/ericfisherdev/repoobserver/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/repoobserver/internal/application"
	"github.com/ericfisherdev/repoobserver/internal/config"
	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch every repository of an account and append a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExport(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("user", "", "account whose repositories are exported")
	f.Bool("include-private", false, "keep private repositories")
	f.Bool("include-archived", false, "keep archived repositories")
	f.Bool("summary", false, "also append a reduced summary snapshot")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-issues",
		Short: "Mirror the latest snapshot as one issue per repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSync(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("repository", "", "destination container for issues, as owner/repo")
	f.Int("project", 0, "project board number; 0 disables board placement")
	f.String("status-field", "", "single-select board field holding the status (default Status)")
	f.Bool("include-private", false, "keep private repositories")
	f.Bool("include-archived", false, "keep archived repositories")
	f.Duration("pacing", 0, "pause between repositories (default 3s)")
	f.Duration("cooldown", 0, "pause after a secondary rate limit failure (default 5m)")
	f.String("preview-dir", "", "write HTML previews here instead of calling the issue API")
	return cmd
}

func newLatestCmd(a *app) *cobra.Command {
	var (
		format  string
		summary bool
		date    string
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent snapshot batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLatest(cmd.Context(), cmd.OutOrStdout(), snapshotKind(summary), date, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table, json or yaml")
	cmd.Flags().BoolVar(&summary, "summary", false, "read the summary snapshot instead of the full one")
	cmd.Flags().StringVar(&date, "date", "", "read the last batch of this day (YYYY-MM-DD) instead of the newest")
	return cmd
}

func newDatesCmd(a *app) *cobra.Command {
	var (
		format  string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "dates",
		Short: "List the days that hold a snapshot, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDates(cmd.Context(), cmd.OutOrStdout(), snapshotKind(summary), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table, json or yaml")
	cmd.Flags().BoolVar(&summary, "summary", false, "list summary snapshots instead of full ones")
	return cmd
}

func snapshotKind(summary bool) model.SnapshotKind {
	if summary {
		return model.SnapshotSummary
	}
	return model.SnapshotFull
}

func (a *app) runExport(ctx context.Context) error {
	if err := a.cfg.ValidateExport(); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	client := githubadapter.NewClient(a.cfg.GitHubToken)
	fetcher := application.NewFetchService(client, a.executor())
	exporter := application.NewExportService(fetcher, store, nil)

	result, err := exporter.Export(ctx, application.ExportOptions{
		Account:         a.cfg.TargetUser,
		IncludePrivate:  a.cfg.IncludePrivate,
		IncludeArchived: a.cfg.IncludeArchived,
		Summary:         a.cfg.ExportSummary,
	})
	if err != nil {
		return err
	}

	slog.Info("export complete", "fetched", result.Fetched, "written", result.Written)
	return nil
}

func (a *app) runSync(ctx context.Context) error {
	if err := a.cfg.ValidateSync(); err != nil {
		return err
	}
	owner, repo, err := a.cfg.RepositoryParts()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := store.LoadLatest(ctx, model.SnapshotFull)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	slog.Info("snapshot loaded", "observed_at", snap.ObservedAt, "records", len(snap.Records))

	exec := a.executor()

	var (
		tracker driven.IssueTracker
		board   *application.BoardService
		pv      *preview.Tracker
	)
	if a.cfg.PreviewDir != "" {
		pv, err = preview.New(a.cfg.PreviewDir)
		if err != nil {
			return err
		}
		tracker = pv
		if a.cfg.HasBoard() {
			slog.Info("board placement skipped in preview mode", "project", a.cfg.ProjectNumber)
		}
	} else {
		tracker = githubadapter.NewClient(a.cfg.GitHubToken)
		if a.cfg.HasBoard() {
			board = application.NewBoardService(githubadapter.NewBoardClient(a.cfg.GitHubToken), exec)
		}
	}

	opts := application.DefaultSyncOptions(owner, repo)
	opts.StatusField = a.cfg.ProjectStatusField
	opts.IncludePrivate = a.cfg.IncludePrivate
	opts.IncludeArchived = a.cfg.IncludeArchived
	opts.Pacing = a.cfg.Pacing
	opts.Cooldown = a.cfg.Cooldown
	if board != nil {
		opts.ProjectNumber = a.cfg.ProjectNumber
	}
	if pv != nil {
		opts.Pacing = 0
		opts.IssuePagePause = 0
	}

	run, err := application.NewSyncService(tracker, board, exec).Run(ctx, snap.Records, opts)
	if err != nil {
		return err
	}

	if pv != nil {
		index, err := pv.WriteIndex(owner, repo)
		if err != nil {
			return err
		}
		slog.Info("preview written", "index", index, "issues", pv.Len())
	}

	r := run.Report
	slog.Info("sync complete",
		"total", r.Total,
		"processed", r.Processed,
		"created", r.Created,
		"updated", r.Updated,
		"placed", r.Placed,
		"errors", r.Errors,
	)
	return nil
}

func (a *app) runLatest(ctx context.Context, w io.Writer, kind model.SnapshotKind, date, format string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var snap *model.Snapshot
	if date != "" {
		snap, err = store.LoadByDate(ctx, kind, date)
		if err != nil {
			return fmt.Errorf("load %s snapshot for %s: %w", kind, date, err)
		}
	} else {
		snap, err = store.LoadLatest(ctx, kind)
		if err != nil {
			return fmt.Errorf("load latest %s snapshot: %w", kind, err)
		}
	}
	return writeSnapshot(w, snap, format)
}

func (a *app) runDates(ctx context.Context, w io.Writer, kind model.SnapshotKind, format string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	dates, err := store.ListDates(ctx, kind)
	if err != nil {
		return fmt.Errorf("list %s snapshot dates: %w", kind, err)
	}
	return writeDates(w, dates, format)
}

// openStore returns the configured snapshot backend and its cleanup.
func (a *app) openStore(ctx context.Context) (driven.SnapshotStore, func(), error) {
	switch a.cfg.StoreBackend {
	case config.BackendSQLite:
		db, err := sqliteadapter.Open(ctx, a.cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot database: %w", err)
		}
		slog.Debug("snapshot database opened", "path", db.Path())
		return sqliteadapter.NewSnapshotRepo(db), func() {
			if err := db.Close(); err != nil {
				slog.Error("error closing database", "error", err)
			}
		}, nil
	default:
		store := csvstore.New(a.cfg.OutputPath).WithInputPath(a.cfg.InputPath)
		return store, func() {}, nil
	}
}
