package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*SnapshotRepo)(nil)

// SnapshotRepo is the SQLite implementation of the SnapshotStore port. Unlike
// the CSV files it keeps every field at full fidelity, so summary batches
// carry the same data as full ones.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a SnapshotRepo backed by the given DB.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Append stores records as a new batch inside one transaction.
func (r *SnapshotRepo) Append(ctx context.Context, kind model.SnapshotKind, records []model.Record, observedAt time.Time) error {
	const insertBatch = `INSERT INTO snapshot_batches (kind, observed_at_ns, record_count) VALUES (?, ?, ?)`
	const insertRecord = `
		INSERT INTO snapshot_records (
			batch_id, position, name, full_name, description, topics, license, language,
			homepage, default_branch, url, stars, forks, watchers, open_issues, closed_issues, commits,
			size_kb, has_issues, has_wiki, has_projects, archived, private,
			created_at, updated_at, pushed_at, latest_issue_updated_at,
			release_tag, release_published_at,
			last_activity_at, activity_source, days_since_activity, bucket
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertBatch, string(kind), observedAt.UTC().UnixNano(), len(records))
	if err != nil {
		return fmt.Errorf("insert %s batch: %w", kind, err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read batch id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rec := range records {
		topics, err := json.Marshal(nonNilTopics(rec.Topics))
		if err != nil {
			return fmt.Errorf("encode topics for %s: %w", rec.FullName, err)
		}

		var releaseTag, releasePublished any
		if rec.LatestRelease != nil {
			releaseTag = rec.LatestRelease.TagName
			releasePublished = formatTime(rec.LatestRelease.PublishedAt)
		}
		var issueUpdated any
		if rec.LatestIssueUpdatedAt != nil {
			issueUpdated = formatTime(*rec.LatestIssueUpdatedAt)
		}

		if _, err := stmt.ExecContext(ctx,
			batchID, i, rec.Name, rec.FullName, rec.Description, string(topics), rec.License, rec.Language,
			rec.Homepage, rec.DefaultBranch, rec.URL, rec.Stars, rec.Forks, rec.Watchers, rec.OpenIssues, rec.ClosedIssues, rec.Commits,
			rec.SizeKB, rec.HasIssues, rec.HasWiki, rec.HasProjects, rec.Archived, rec.Private,
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), formatTime(rec.PushedAt), issueUpdated,
			releaseTag, releasePublished,
			formatTime(rec.Activity.LastActivityAt), string(rec.Activity.Source), rec.Activity.DaysSinceActivity, string(rec.Activity.Bucket),
		); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.FullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot transaction: %w", err)
	}

	slog.Info("snapshot written", "db", r.db.Path(), "kind", kind, "rows", len(records))
	return nil
}

// LoadLatest returns every record sharing the greatest observation instant
// stored for kind, in insertion order.
func (r *SnapshotRepo) LoadLatest(ctx context.Context, kind model.SnapshotKind) (*model.Snapshot, error) {
	const latestQuery = `SELECT MAX(observed_at_ns) FROM snapshot_batches WHERE kind = ?`

	var latest sql.NullInt64
	if err := r.db.Reader.QueryRowContext(ctx, latestQuery, string(kind)).Scan(&latest); err != nil {
		return nil, fmt.Errorf("find latest %s batch: %w", kind, err)
	}
	if !latest.Valid {
		return nil, fmt.Errorf("%s batches: %w", kind, driven.ErrNoSnapshot)
	}

	return r.loadInstant(ctx, kind, latest.Int64)
}

// ListDates returns the display-zone dates of non-empty batches of kind,
// newest first.
func (r *SnapshotRepo) ListDates(ctx context.Context, kind model.SnapshotKind) ([]string, error) {
	const query = `
		SELECT DISTINCT observed_at_ns FROM snapshot_batches
		WHERE kind = ? AND record_count > 0
		ORDER BY observed_at_ns DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s batch instants: %w", kind, err)
	}
	defer rows.Close()

	dates := []string{}
	for rows.Next() {
		var ns int64
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("scan batch instant: %w", err)
		}
		date := model.DateKey(time.Unix(0, ns))
		if len(dates) == 0 || dates[len(dates)-1] != date {
			dates = append(dates, date)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch instants: %w", err)
	}
	return dates, nil
}

// LoadByDate returns the latest batch of kind observed on date in the
// display zone.
func (r *SnapshotRepo) LoadByDate(ctx context.Context, kind model.SnapshotKind, date string) (*model.Snapshot, error) {
	const query = `
		SELECT MAX(observed_at_ns) FROM snapshot_batches
		WHERE kind = ? AND observed_at_ns >= ? AND observed_at_ns < ?`

	start, err := model.ParseDateKey(date)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot date %q: %w", date, err)
	}
	end := start.AddDate(0, 0, 1)

	var latest sql.NullInt64
	if err := r.db.Reader.QueryRowContext(ctx, query, string(kind), start.UnixNano(), end.UnixNano()).Scan(&latest); err != nil {
		return nil, fmt.Errorf("find %s batch for %s: %w", kind, date, err)
	}
	if !latest.Valid {
		return nil, fmt.Errorf("%s batches on %s: %w", kind, date, driven.ErrNoSnapshot)
	}

	return r.loadInstant(ctx, kind, latest.Int64)
}

// loadInstant reads every record of kind observed at observedNs, in
// insertion order.
func (r *SnapshotRepo) loadInstant(ctx context.Context, kind model.SnapshotKind, observedNs int64) (*model.Snapshot, error) {
	const recordsQuery = `
		SELECT r.name, r.full_name, r.description, r.topics, r.license, r.language,
			r.homepage, r.default_branch, r.url, r.stars, r.forks, r.watchers, r.open_issues, r.closed_issues, r.commits,
			r.size_kb, r.has_issues, r.has_wiki, r.has_projects, r.archived, r.private,
			r.created_at, r.updated_at, r.pushed_at, r.latest_issue_updated_at,
			r.release_tag, r.release_published_at,
			r.last_activity_at, r.activity_source, r.days_since_activity, r.bucket
		FROM snapshot_records r
		JOIN snapshot_batches b ON b.id = r.batch_id
		WHERE b.kind = ? AND b.observed_at_ns = ?
		ORDER BY b.id, r.position`

	rows, err := r.db.Reader.QueryContext(ctx, recordsQuery, string(kind), observedNs)
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", kind, err)
	}
	defer rows.Close()

	snap := &model.Snapshot{ObservedAt: time.Unix(0, observedNs).UTC()}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		snap.Records = append(snap.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	if len(snap.Records) == 0 {
		return nil, fmt.Errorf("%s batch at %s is empty: %w", kind, snap.ObservedAt.Format(time.RFC3339), driven.ErrNoSnapshot)
	}
	return snap, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (model.Record, error) {
	var (
		rec                                  model.Record
		topics                               string
		created, updated, pushed, lastActive sql.NullString
		issueUpdated, releaseTag, releasePub sql.NullString
		source, bucket                       string
	)

	err := s.Scan(
		&rec.Name, &rec.FullName, &rec.Description, &topics, &rec.License, &rec.Language,
		&rec.Homepage, &rec.DefaultBranch, &rec.URL, &rec.Stars, &rec.Forks, &rec.Watchers, &rec.OpenIssues, &rec.ClosedIssues, &rec.Commits,
		&rec.SizeKB, &rec.HasIssues, &rec.HasWiki, &rec.HasProjects, &rec.Archived, &rec.Private,
		&created, &updated, &pushed, &issueUpdated,
		&releaseTag, &releasePub,
		&lastActive, &source, &rec.Activity.DaysSinceActivity, &bucket,
	)
	if err != nil {
		return model.Record{}, err
	}

	if err := json.Unmarshal([]byte(topics), &rec.Topics); err != nil {
		return model.Record{}, fmt.Errorf("decode topics for %s: %w", rec.FullName, err)
	}
	rec.Topics = nonNilTopics(rec.Topics)

	for _, f := range []struct {
		name string
		src  sql.NullString
		dst  *time.Time
	}{
		{"created_at", created, &rec.CreatedAt},
		{"updated_at", updated, &rec.UpdatedAt},
		{"pushed_at", pushed, &rec.PushedAt},
		{"last_activity_at", lastActive, &rec.Activity.LastActivityAt},
	} {
		if *f.dst, err = parseNullTime(f.src); err != nil {
			return model.Record{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}

	if issueUpdated.Valid {
		t, err := parseTime(issueUpdated.String)
		if err != nil {
			return model.Record{}, fmt.Errorf("parse latest_issue_updated_at: %w", err)
		}
		rec.LatestIssueUpdatedAt = &t
	}
	if releaseTag.Valid {
		published, err := parseNullTime(releasePub)
		if err != nil {
			return model.Record{}, fmt.Errorf("parse release_published_at: %w", err)
		}
		rec.LatestRelease = &model.Release{TagName: releaseTag.String, PublishedAt: published}
	}

	rec.Activity.Source = model.ActivitySource(source)
	rec.Activity.Bucket = model.RecencyBucket(bucket)
	if _, ok := model.ParseBucketLabel(bucket); !ok {
		rec.Activity.Bucket = model.BucketUnknown
	}

	return rec, nil
}

func nonNilTopics(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}

// formatTime stores the zero time as NULL.
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return parseTime(s.String)
}

// parseTime tries the layouts SQLite and this package write.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
