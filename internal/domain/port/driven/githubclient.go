package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

// RepoRef identifies a listed repository.
type RepoRef struct {
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// IssuePage is one page of a container's issue listing. PullRequests counts
// entries that were pull requests and therefore omitted from Items; it lets
// callers detect a short page from the raw page length.
type IssuePage struct {
	Items        []model.TrackedItem
	PullRequests int
}

// RawLen returns the number of entries the remote page contained, pull
// requests included.
func (p IssuePage) RawLen() int {
	return len(p.Items) + p.PullRequests
}

// RepositorySource defines the driven port for reading repository metadata.
// Every method performs exactly one remote call so callers can wrap each in
// their own retry policy.
type RepositorySource interface {
	// ListRepositories returns one page of the account's repositories sorted by
	// most recently updated first.
	ListRepositories(ctx context.Context, account string, page, perPage int) ([]RepoRef, error)
	// GetRepository returns the full repository detail.
	GetRepository(ctx context.Context, owner, name string) (*model.Repository, error)
	// GetLatestRelease returns the latest release. A repository without
	// releases yields an *APIError with StatusCode 404.
	GetLatestRelease(ctx context.Context, owner, name string) (*model.Release, error)
	// LatestIssueUpdate returns the update time of the most recently updated
	// issue or pull request, or nil when there is none.
	LatestIssueUpdate(ctx context.Context, owner, name string) (*time.Time, error)
	// ListClosedIssues returns one page of closed entries.
	ListClosedIssues(ctx context.Context, owner, name string, page, perPage int) (IssuePage, error)
	// CommitCount returns the number of commits on the default branch. An
	// empty repository yields 0.
	CommitCount(ctx context.Context, owner, name string) (int, error)
}
