package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type snapshotView struct {
	ObservedAt string       `json:"observed_at" yaml:"observed_at"`
	Count      int          `json:"count" yaml:"count"`
	Records    []recordView `json:"records" yaml:"records"`
}

type recordView struct {
	Name         string `json:"name" yaml:"name"`
	FullName     string `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	Status       string `json:"status" yaml:"status"`
	DaysSince    int    `json:"days_since_activity" yaml:"days_since_activity"`
	Stars        int    `json:"stars" yaml:"stars"`
	Forks        int    `json:"forks" yaml:"forks"`
	OpenIssues   int    `json:"open_issues" yaml:"open_issues"`
	ClosedIssues int    `json:"closed_issues" yaml:"closed_issues"`
	Commits      int    `json:"commits" yaml:"commits"`
	Language     string `json:"language" yaml:"language"`
	Pushed       string `json:"pushed_date" yaml:"pushed_date"`
	Private      bool   `json:"private" yaml:"private"`
	Archived     bool   `json:"archived" yaml:"archived"`
	URL          string `json:"url" yaml:"url"`
}

func newSnapshotView(snap *model.Snapshot) snapshotView {
	v := snapshotView{
		ObservedAt: snap.ObservedAt.UTC().Format(time.RFC3339),
		Count:      len(snap.Records),
		Records:    make([]recordView, 0, len(snap.Records)),
	}
	for _, r := range snap.Records {
		v.Records = append(v.Records, recordView{
			Name:         r.Name,
			FullName:     r.FullName,
			Status:       r.Activity.Bucket.Label(),
			DaysSince:    r.Activity.DaysSinceActivity,
			Stars:        r.Stars,
			Forks:        r.Forks,
			OpenIssues:   r.OpenIssues,
			ClosedIssues: r.ClosedIssues,
			Commits:      r.Commits,
			Language:     model.OrPlaceholder(r.Language, model.LabelNoLanguage),
			Pushed:       model.FormatDate(r.PushedAt),
			Private:      r.Private,
			Archived:     r.Archived,
			URL:          r.URL,
		})
	}
	return v
}

// writeSnapshot renders snap to w in the requested format.
func writeSnapshot(w io.Writer, snap *model.Snapshot, format string) error {
	view := newSnapshotView(snap)

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case formatTable, "":
		return writeTable(w, view)
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func writeTable(w io.Writer, view snapshotView) error {
	if _, err := fmt.Fprintf(w, "Snapshot %s (%d repositories)\n\n", view.ObservedAt, view.Count); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tDAYS\tSTARS\tFORKS\tOPEN\tCLOSED\tCOMMITS\tLANGUAGE\tPUSHED")
	for _, r := range view.Records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name,
			r.Status,
			r.DaysSince,
			humanize.Comma(int64(r.Stars)),
			humanize.Comma(int64(r.Forks)),
			humanize.Comma(int64(r.OpenIssues)),
			humanize.Comma(int64(r.ClosedIssues)),
			humanize.Comma(int64(r.Commits)),
			r.Language,
			r.Pushed,
		)
	}
	return tw.Flush()
}

type datesView struct {
	Dates []string `json:"dates" yaml:"dates"`
}

// writeDates renders snapshot dates to w, one per line for the table format.
func writeDates(w io.Writer, dates []string, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(datesView{Dates: dates})
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(datesView{Dates: dates}); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case formatTable, "":
		for _, d := range dates {
			if _, err := fmt.Fprintln(w, d); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}
