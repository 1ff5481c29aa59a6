package csvstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

// Column names shared by both schemas.
const (
	colObservedUTC   = "observed_at_utc"
	colObservedLocal = "observed_at_local"
)

// column renders one field of a record and parses it back.
type column struct {
	name   string
	format func(r model.Record) string
	parse  func(r *model.Record, v string)
}

var (
	colName        = column{"name", func(r model.Record) string { return r.Name }, func(r *model.Record, v string) { r.Name = v }}
	colFullName    = column{"full_name", func(r model.Record) string { return r.FullName }, func(r *model.Record, v string) { r.FullName = v }}
	colDescription = column{"description",
		func(r model.Record) string { return model.OrPlaceholder(r.Description, model.LabelNoDesc) },
		func(r *model.Record, v string) { r.Description = unplaceholder(v, model.LabelNoDesc) }}
	colStatus = column{"status",
		func(r model.Record) string { return r.Activity.Bucket.Label() },
		func(r *model.Record, v string) { r.Activity.Bucket, _ = model.ParseBucketLabel(v) }}
	colActivityType = column{"activity_type",
		func(r model.Record) string { return model.SourceLabel(r.Activity.Source) },
		func(r *model.Record, v string) { r.Activity.Source = model.ParseSourceLabel(v) }}
	colDays = column{"days_since_activity",
		func(r model.Record) string { return strconv.Itoa(r.Activity.DaysSinceActivity) },
		func(r *model.Record, v string) { r.Activity.DaysSinceActivity = atoi(v) }}
	colStars        = intColumn("stars", func(r *model.Record) *int { return &r.Stars })
	colForks        = intColumn("forks", func(r *model.Record) *int { return &r.Forks })
	colWatchers     = intColumn("watchers", func(r *model.Record) *int { return &r.Watchers })
	colOpenIssues   = intColumn("open_issues", func(r *model.Record) *int { return &r.OpenIssues })
	colClosedIssues = intColumn("closed_issues", func(r *model.Record) *int { return &r.ClosedIssues })
	colCommits      = intColumn("commits", func(r *model.Record) *int { return &r.Commits })
	colSize         = column{"size",
		func(r model.Record) string { return model.SizeDisplay(r.SizeKB) },
		func(r *model.Record, v string) { r.SizeKB = model.ParseSizeDisplay(v) }}
	colLanguage = column{"language",
		func(r model.Record) string { return model.OrPlaceholder(r.Language, model.LabelNoLanguage) },
		func(r *model.Record, v string) { r.Language = unplaceholder(v, model.LabelNoLanguage) }}
	colLicense = column{"license",
		func(r model.Record) string { return model.OrPlaceholder(r.License, model.LabelNoLicense) },
		func(r *model.Record, v string) { r.License = unplaceholder(v, model.LabelNoLicense) }}
	colTopics = column{"topics",
		func(r model.Record) string { return model.TopicsDisplay(r.Topics) },
		func(r *model.Record, v string) { r.Topics = model.ParseTopicsDisplay(v) }}
	colArchive = column{"archive_status",
		func(r model.Record) string { return model.ArchiveLabel(r.Archived) },
		func(r *model.Record, v string) { r.Archived = strings.EqualFold(v, model.LabelArchived) }}
	colVisibility = column{"visibility",
		func(r model.Record) string { return model.VisibilityLabel(r.Private) },
		func(r *model.Record, v string) { r.Private = strings.EqualFold(v, model.LabelPrivate) }}
	colDefaultBranch = column{"default_branch", func(r model.Record) string { return r.DefaultBranch }, func(r *model.Record, v string) { r.DefaultBranch = v }}
	colHasIssues     = boolColumn("has_issues", func(r *model.Record) *bool { return &r.HasIssues })
	colHasWiki       = boolColumn("has_wiki", func(r *model.Record) *bool { return &r.HasWiki })
	colHasProjects   = boolColumn("has_projects", func(r *model.Record) *bool { return &r.HasProjects })
	colHomepage      = column{"homepage",
		func(r model.Record) string { return model.OrPlaceholder(r.Homepage, model.LabelNone) },
		func(r *model.Record, v string) { r.Homepage = unplaceholder(v, model.LabelNone) }}
	colCreated = dateColumn("created_date", func(r *model.Record) *time.Time { return &r.CreatedAt })
	colUpdated = dateColumn("updated_date", func(r *model.Record) *time.Time { return &r.UpdatedAt })
	colPushed  = dateColumn("pushed_date", func(r *model.Record) *time.Time { return &r.PushedAt })
	colIssue   = column{"latest_issue_updated",
		func(r model.Record) string {
			if r.LatestIssueUpdatedAt == nil {
				return model.LabelNone
			}
			return model.FormatDate(*r.LatestIssueUpdatedAt)
		},
		func(r *model.Record, v string) {
			if t, err := model.ParseDate(v); err == nil && !t.IsZero() {
				r.LatestIssueUpdatedAt = &t
			}
		}}
	colRelease = column{"latest_release",
		func(r model.Record) string { return model.ReleaseDisplay(r.LatestRelease) },
		func(r *model.Record, v string) { r.LatestRelease = model.ParseReleaseDisplay(v) }}
	colURL = column{"url", func(r model.Record) string { return r.URL }, func(r *model.Record, v string) { r.URL = v }}
)

// fullSchema is the column order of full snapshot files.
var fullSchema = []column{
	colName, colFullName, colDescription, colStatus, colActivityType, colDays,
	colStars, colForks, colWatchers, colOpenIssues, colClosedIssues, colCommits, colSize,
	colLanguage, colLicense, colTopics, colArchive, colVisibility, colDefaultBranch,
	colHasIssues, colHasWiki, colHasProjects, colHomepage,
	colCreated, colUpdated, colPushed, colIssue, colRelease, colURL,
}

// summarySchema is the reduced column order of summary snapshot files.
var summarySchema = []column{
	colName, colStatus, colStars, colForks, colOpenIssues, colClosedIssues, colCommits,
	colLanguage, colPushed, colURL,
}

func schemaFor(kind model.SnapshotKind) []column {
	if kind == model.SnapshotSummary {
		return summarySchema
	}
	return fullSchema
}

func header(schema []column) []string {
	h := make([]string, 0, len(schema)+2)
	h = append(h, colObservedUTC, colObservedLocal)
	for _, c := range schema {
		h = append(h, c.name)
	}
	return h
}

func formatRow(schema []column, r model.Record, observedAt time.Time) []string {
	row := make([]string, 0, len(schema)+2)
	row = append(row,
		observedAt.UTC().Format(time.RFC3339Nano),
		observedAt.In(model.DisplayZone).Format(time.RFC3339Nano),
	)
	for _, c := range schema {
		row = append(row, c.format(r))
	}
	return row
}

// parseRow rebuilds a record from a row, using index to locate columns by
// header name. Columns missing from the file are left at their zero value.
func parseRow(schema []column, index map[string]int, row []string) model.Record {
	var r model.Record
	for _, c := range schema {
		i, ok := index[c.name]
		if !ok || i >= len(row) {
			continue
		}
		c.parse(&r, strings.TrimSpace(row[i]))
	}

	r.Activity.LastActivityAt = r.PushedAt
	if r.Activity.Source == model.ActivityIssueUpdate && r.LatestIssueUpdatedAt != nil {
		r.Activity.LastActivityAt = *r.LatestIssueUpdatedAt
	}
	if r.Activity.Bucket == "" {
		r.Activity.Bucket = model.BucketUnknown
	}
	return r
}

func intColumn(name string, field func(*model.Record) *int) column {
	return column{
		name:   name,
		format: func(r model.Record) string { return strconv.Itoa(*field(&r)) },
		parse:  func(r *model.Record, v string) { *field(r) = atoi(v) },
	}
}

func boolColumn(name string, field func(*model.Record) *bool) column {
	return column{
		name:   name,
		format: func(r model.Record) string { return model.YesNo(*field(&r)) },
		parse:  func(r *model.Record, v string) { *field(r) = model.ParseYesNo(v) },
	}
}

func dateColumn(name string, field func(*model.Record) *time.Time) column {
	return column{
		name:   name,
		format: func(r model.Record) string { return model.FormatDate(*field(&r)) },
		parse: func(r *model.Record, v string) {
			if t, err := model.ParseDate(v); err == nil {
				*field(r) = t
			}
		},
	}
}

// atoi parses a count column; anything unparseable is 0.
func atoi(v string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func unplaceholder(v, placeholder string) string {
	if v == placeholder {
		return ""
	}
	return v
}
