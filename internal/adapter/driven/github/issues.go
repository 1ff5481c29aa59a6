package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

// CreateIssue opens an issue titled after the mirrored repository.
func (c *Client) CreateIssue(ctx context.Context, owner, repo, title, body string) (model.TrackedItem, error) {
	issue, resp, err := c.gh.Issues.Create(ctx, owner, repo, &gh.IssueRequest{
		Title: gh.Ptr(title),
		Body:  gh.Ptr(body),
	})
	if err != nil {
		return model.TrackedItem{}, fmt.Errorf("creating issue %q in %s/%s: %w", title, owner, repo, mapError(err))
	}

	logRateLimit(resp, owner+"/"+repo+"/create-issue", 0, 1)
	return mapIssue(issue), nil
}

// UpdateIssueBody replaces the body of an existing issue. Title and state are
// left untouched.
func (c *Client) UpdateIssueBody(ctx context.Context, owner, repo string, number int, body string) error {
	_, resp, err := c.gh.Issues.Edit(ctx, owner, repo, number, &gh.IssueRequest{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("updating issue %s/%s#%d: %w", owner, repo, number, mapError(err))
	}

	logRateLimit(resp, owner+"/"+repo+"/edit-issue", 0, 1)
	return nil
}

// GetIssue fetches one issue, including the node id the board API needs.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (model.TrackedItem, error) {
	issue, resp, err := c.gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return model.TrackedItem{}, fmt.Errorf("getting issue %s/%s#%d: %w", owner, repo, number, mapError(err))
	}

	logRateLimit(resp, owner+"/"+repo+"/issue", 0, 1)
	return mapIssue(issue), nil
}
