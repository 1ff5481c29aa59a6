package model

import "time"

// Repository is one observed repository as returned by the hosting API.
//
// ClosedIssues and Commits come from separate best-effort counts and are 0
// when the count could not be obtained.
type Repository struct {
	Name          string
	FullName      string
	Description   string
	Topics        []string
	License       string
	Language      string
	Homepage      string
	DefaultBranch string
	URL           string

	Stars        int
	Forks        int
	Watchers     int
	OpenIssues   int
	ClosedIssues int
	Commits      int
	SizeKB       int

	HasIssues   bool
	HasWiki     bool
	HasProjects bool
	Archived    bool
	Private     bool

	CreatedAt time.Time
	UpdatedAt time.Time
	PushedAt  time.Time
	// LatestIssueUpdatedAt is nil when the repository has no issue activity.
	LatestIssueUpdatedAt *time.Time
	// LatestRelease is nil when the repository has never published a release.
	LatestRelease *Release
}

// Release describes the latest published release of a repository.
type Release struct {
	TagName     string
	PublishedAt time.Time
}

// Owner returns the account half of FullName, or "" if FullName is not qualified.
func (r Repository) Owner() string {
	for i := 0; i < len(r.FullName); i++ {
		if r.FullName[i] == '/' {
			return r.FullName[:i]
		}
	}
	return ""
}
