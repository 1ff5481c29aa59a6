package application

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/dustin/go-humanize"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

var bodyTemplate = template.Must(template.New("issue-body").Funcs(template.FuncMap{
	"comma":      func(n int) string { return humanize.Comma(int64(n)) },
	"date":       model.FormatDate,
	"size":       model.SizeDisplay,
	"release":    model.ReleaseDisplay,
	"topics":     model.TopicsDisplay,
	"yesno":      model.YesNo,
	"archive":    model.ArchiveLabel,
	"visibility": model.VisibilityLabel,
	"source":     model.SourceLabel,
	"orNone":     model.OrPlaceholder,
}).Parse(`## Repository: [{{.FullName}}]({{.URL}})

### Description
| Field | Value |
|------|------|
| Description | {{orNone .Description "no description"}} |
| Language | {{orNone .Language "unknown"}} |
| License | {{orNone .License "no license"}} |
| Topics | {{topics .Topics}} |
| Homepage | {{orNone .Homepage "none"}} |

### Activity
| Field | Value |
|------|------|
| Stars | {{comma .Stars}} |
| Forks | {{comma .Forks}} |
| Watchers | {{comma .Watchers}} |
| Open issues | {{comma .OpenIssues}} |
| Closed issues | {{comma .ClosedIssues}} |
| Size | {{size .SizeKB}} |
| Status | {{.Activity.Bucket.Label}} (by {{source .Activity.Source}}, {{.Activity.DaysSinceActivity}} days ago) |

### Dates
| Field | Value |
|------|------|
| Created | {{date .CreatedAt}} |
| Updated | {{date .UpdatedAt}} |
| Last push | {{date .PushedAt}} |
| Last issue update | {{.IssueUpdated}} |
| Latest release | {{release .LatestRelease}} |

### State
| Field | Value |
|------|------|
| Archive | {{archive .Archived}} |
| Visibility | {{visibility .Private}} |
| Default branch | {{orNone .DefaultBranch "none"}} |
| Issues | {{yesno .HasIssues}} |
| Wiki | {{yesno .HasWiki}} |
| Projects | {{yesno .HasProjects}} |
`))

type bodyView struct {
	model.Record
	IssueUpdated string
}

// RenderIssueBody renders the markdown body that mirrors record.
func RenderIssueBody(record model.Record) (string, error) {
	view := bodyView{Record: record, IssueUpdated: model.LabelNone}
	if record.LatestIssueUpdatedAt != nil {
		view.IssueUpdated = model.FormatDate(*record.LatestIssueUpdatedAt)
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("rendering issue body for %s: %w", record.FullName, err)
	}
	return buf.String(), nil
}
