// Package csvstore implements the SnapshotStore port as dated CSV files.
//
// A base path such as output/repositories.csv is expanded per observation
// date into output/repositories/2025/06/repositories-2025-06-01.csv, where the
// date is taken in the display zone. Summary batches use the base name with
// a "-summary" suffix.
package csvstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*Store)(nil)

const (
	summarySuffix = "-summary"
	filePerms     = 0o644
)

// Store reads and writes dated snapshot files below a base path.
type Store struct {
	basePath string
	// inputPath, when set, is consulted first by LoadLatest for full snapshots.
	inputPath string
}

// New creates a Store rooted at basePath.
func New(basePath string) *Store {
	return &Store{basePath: basePath}
}

// WithInputPath returns a copy of the store that loads full snapshots from
// path. A path naming an existing file is read directly; anything else is
// treated as a base path.
func (s *Store) WithInputPath(path string) *Store {
	c := *s
	c.inputPath = path
	return &c
}

// Append writes records as one batch to the file for observedAt's date. An
// existing non-empty file gains rows without a second header.
func (s *Store) Append(_ context.Context, kind model.SnapshotKind, records []model.Record, observedAt time.Time) error {
	path := DatedPath(s.kindBase(s.basePath, kind), observedAt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}

	schema := schemaFor(kind)
	w := csv.NewWriter(&buf)
	if len(existing) == 0 {
		if err := w.Write(header(schema)); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, r := range records {
		if err := w.Write(formatRow(schema, r, observedAt)); err != nil {
			return fmt.Errorf("writing row for %s: %w", r.FullName, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if len(existing) == 0 {
		// atomic.WriteFile leaves new files at the temp file's 0600.
		if err := os.Chmod(path, filePerms); err != nil {
			return fmt.Errorf("setting permissions on %s: %w", path, err)
		}
	}

	slog.Info("snapshot written", "path", path, "kind", kind, "rows", len(records))
	return nil
}

// LoadLatest returns the batch with the greatest observation instant from
// the newest snapshot file of the given kind.
func (s *Store) LoadLatest(_ context.Context, kind model.SnapshotKind) (*model.Snapshot, error) {
	base := s.basePath
	if s.inputPath != "" && kind == model.SnapshotFull {
		base = s.inputPath
	}

	path, err := resolveLatestFile(s.kindBase(base, kind))
	if err != nil {
		return nil, err
	}

	return readFile(path, kind)
}

// ListDates returns the dates of the snapshot files of kind below the base
// path, newest first.
func (s *Store) ListDates(_ context.Context, kind model.SnapshotKind) ([]string, error) {
	dir, name, ext := splitBase(s.kindBase(s.basePath, kind))
	categoryDir := filepath.Join(dir, name)

	seen := make(map[string]bool)
	dates := []string{}
	err := filepath.WalkDir(categoryDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), name+"-") || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		m := fileDatePattern.FindStringSubmatch(d.Name())
		if m == nil || seen[m[1]] {
			return nil
		}
		if _, err := time.Parse(model.DateLayout, m[1]); err != nil {
			return nil
		}
		seen[m[1]] = true
		dates = append(dates, m[1])
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return dates, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", categoryDir, err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// LoadByDate returns the latest batch in the snapshot file of kind for date.
func (s *Store) LoadByDate(_ context.Context, kind model.SnapshotKind, date string) (*model.Snapshot, error) {
	day, err := model.ParseDateKey(date)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot date %q: %w", date, err)
	}

	path := DatedPath(s.kindBase(s.basePath, kind), day)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot file %s: %w", path, driven.ErrNoSnapshot)
	}

	return readFile(path, kind)
}

func readFile(path string, kind model.SnapshotKind) (*model.Snapshot, error) {
	slog.Info("loading snapshot", "path", path, "kind", kind)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return readLatestBatch(f, schemaFor(kind))
}

// kindBase returns the base path for kind.
func (s *Store) kindBase(base string, kind model.SnapshotKind) string {
	if kind != model.SnapshotSummary {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + summarySuffix + ext
}

// DatedPath expands a base path into the dated file for observedAt.
func DatedPath(base string, observedAt time.Time) string {
	dir, name, ext := splitBase(base)
	local := observedAt.In(model.DisplayZone)
	file := fmt.Sprintf("%s-%s%s", name, local.Format(model.DateLayout), ext)
	return filepath.Join(dir, name, local.Format("2006"), local.Format("01"), file)
}

func splitBase(base string) (dir, name, ext string) {
	dir = filepath.Dir(base)
	ext = filepath.Ext(base)
	if ext == "" {
		ext = ".csv"
	}
	name = strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	if name == "" || name == "." {
		name = "export"
	}
	return dir, name, ext
}

var fileDatePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\.csv$`)

// resolveLatestFile returns base itself when it is a file, otherwise the
// newest CSV below base's category directory. Newest means the latest date
// embedded in the file name; files without one fall back to mtime.
func resolveLatestFile(base string) (string, error) {
	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		return base, nil
	}

	dir, name, _ := splitBase(base)
	categoryDir := filepath.Join(dir, name)
	if _, err := os.Stat(categoryDir); err != nil {
		return "", fmt.Errorf("snapshot directory %s: %w", categoryDir, driven.ErrNoSnapshot)
	}

	type candidate struct {
		path  string
		date  time.Time
		dated bool
		mtime time.Time
	}
	var files []candidate

	err := filepath.WalkDir(categoryDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		c := candidate{path: path}
		if m := fileDatePattern.FindStringSubmatch(d.Name()); m != nil {
			if t, err := time.Parse(model.DateLayout, m[1]); err == nil {
				c.date, c.dated = t, true
			}
		}
		if info, err := d.Info(); err == nil {
			c.mtime = info.ModTime()
		}
		files = append(files, c)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", categoryDir, err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no csv files in %s: %w", categoryDir, driven.ErrNoSnapshot)
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.dated != b.dated {
			return a.dated
		}
		if a.dated {
			return a.date.After(b.date)
		}
		return a.mtime.After(b.mtime)
	})

	return files[0].path, nil
}

// readLatestBatch parses every row and keeps only those carrying the
// maximum observation instant.
func readLatestBatch(r io.Reader, schema []column) (*model.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, driven.ErrNoSnapshot
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(head))
	for i, h := range head {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	tsCol, ok := index[colObservedUTC]
	if !ok {
		return nil, fmt.Errorf("missing %s column", colObservedUTC)
	}

	var (
		latest time.Time
		rows   [][]string
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if tsCol >= len(row) {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(row[tsCol]))
		if err != nil {
			continue
		}

		switch {
		case ts.After(latest):
			latest = ts
			rows = [][]string{row}
		case ts.Equal(latest):
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, driven.ErrNoSnapshot
	}

	snap := &model.Snapshot{ObservedAt: latest.UTC(), Records: make([]model.Record, 0, len(rows))}
	for _, row := range rows {
		snap.Records = append(snap.Records, parseRow(schema, index, row))
	}
	return snap, nil
}
