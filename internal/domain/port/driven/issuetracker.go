package driven

import (
	"context"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

// IssueTracker defines the driven port for the remote work-item tracker that
// mirrors repositories. All methods operate on one destination container.
type IssueTracker interface {
	// ListIssues returns one page of issues in every state, pull requests excluded.
	ListIssues(ctx context.Context, owner, repo string, page, perPage int) (IssuePage, error)
	// CreateIssue opens a new issue and returns it.
	CreateIssue(ctx context.Context, owner, repo, title, body string) (model.TrackedItem, error)
	// UpdateIssueBody replaces the body of an existing issue.
	UpdateIssueBody(ctx context.Context, owner, repo string, number int, body string) error
	// GetIssue fetches a single issue including its global NodeID.
	GetIssue(ctx context.Context, owner, repo string, number int) (model.TrackedItem, error)
}
