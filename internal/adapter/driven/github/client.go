// Package github implements the RepositorySource, IssueTracker and BoardClient
// ports against the GitHub REST and GraphQL APIs.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.RepositorySource = (*Client)(nil)
	_ driven.IssueTracker     = (*Client)(nil)
)

// Client implements the REST driven ports using the go-github library. Every
// method issues exactly one API request; retries belong to the caller.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	return &Client{gh: newRESTClient(token)}
}

// NewClientWithBaseURL creates a Client with the same transport stack as
// NewClient, pointed at a different API root such as a GitHub Enterprise
// host or a test server.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	client := newRESTClient(token)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

func newRESTClient(token string) *gh.Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	return gh.NewClient(rateLimitClient).WithAuthToken(token)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ListRepositories returns one page of the account's repositories, most
// recently updated first.
func (c *Client) ListRepositories(ctx context.Context, account string, page, perPage int) ([]driven.RepoRef, error) {
	opts := &gh.RepositoryListByUserOptions{
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	repos, resp, err := c.gh.Repositories.ListByUser(ctx, account, opts)
	if err != nil {
		return nil, fmt.Errorf("listing repositories for %s (page %d): %w", account, page, mapError(err))
	}

	logRateLimit(resp, account+"/repos", page, len(repos))

	refs := make([]driven.RepoRef, 0, len(repos))
	for _, r := range repos {
		refs = append(refs, driven.RepoRef{Owner: r.GetOwner().GetLogin(), Name: r.GetName()})
	}
	return refs, nil
}

// GetRepository fetches the repository detail.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, name, mapError(err))
	}

	logRateLimit(resp, owner+"/"+name, 0, 1)

	return mapRepository(repo), nil
}

// GetLatestRelease fetches the latest published release. A repository with
// no releases yields a 404 *driven.APIError.
func (c *Client) GetLatestRelease(ctx context.Context, owner, name string) (*model.Release, error) {
	release, resp, err := c.gh.Repositories.GetLatestRelease(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("getting latest release for %s/%s: %w", owner, name, mapError(err))
	}

	logRateLimit(resp, owner+"/"+name+"/releases/latest", 0, 1)

	return &model.Release{
		TagName:     release.GetTagName(),
		PublishedAt: release.GetPublishedAt().Time,
	}, nil
}

// LatestIssueUpdate returns the update time of the most recently updated issue
// or pull request in any state, or nil if there is none.
func (c *Client) LatestIssueUpdate(ctx context.Context, owner, name string) (*time.Time, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("listing latest issue for %s/%s: %w", owner, name, mapError(err))
	}

	logRateLimit(resp, owner+"/"+name+"/issues", 1, len(issues))

	if len(issues) == 0 || issues[0].UpdatedAt == nil {
		return nil, nil
	}
	updated := issues[0].GetUpdatedAt().Time
	return &updated, nil
}

// CommitCount asks for one commit per page and reads the total from the
// last-page link. An empty repository answers 409 and counts as 0.
func (c *Client) CommitCount(ctx context.Context, owner, name string) (int, error) {
	opts := &gh.CommitsListOptions{ListOptions: gh.ListOptions{PerPage: 1}}

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return 0, nil
		}
		return 0, fmt.Errorf("counting commits for %s/%s: %w", owner, name, mapError(err))
	}

	logRateLimit(resp, owner+"/"+name+"/commits", 1, len(commits))

	if resp.LastPage > 0 {
		return resp.LastPage, nil
	}
	return len(commits), nil
}

// ListClosedIssues returns one page of closed issues. Pull requests are
// counted but omitted.
func (c *Client) ListClosedIssues(ctx context.Context, owner, name string, page, perPage int) (driven.IssuePage, error) {
	return c.listIssues(ctx, owner, name, "closed", page, perPage)
}

// ListIssues returns one page of issues in every state. Pull requests are
// counted but omitted.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, page, perPage int) (driven.IssuePage, error) {
	return c.listIssues(ctx, owner, repo, "all", page, perPage)
}

func (c *Client) listIssues(ctx context.Context, owner, repo, state string, page, perPage int) (driven.IssuePage, error) {
	opts := &gh.IssueListByRepoOptions{
		State: state,
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return driven.IssuePage{}, fmt.Errorf("listing %s issues for %s/%s (page %d): %w", state, owner, repo, page, mapError(err))
	}

	logRateLimit(resp, owner+"/"+repo+"/issues", page, len(issues))

	result := driven.IssuePage{Items: make([]model.TrackedItem, 0, len(issues))}
	for _, issue := range issues {
		if issue.IsPullRequest() {
			result.PullRequests++
			continue
		}
		result.Items = append(result.Items, mapIssue(issue))
	}
	return result, nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapRepository converts a go-github Repository to a domain model Repository.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapRepository(r *gh.Repository) *model.Repository {
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}

	return &model.Repository{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Topics:        topics,
		License:       r.GetLicense().GetName(),
		Language:      r.GetLanguage(),
		Homepage:      r.GetHomepage(),
		DefaultBranch: r.GetDefaultBranch(),
		URL:           r.GetHTMLURL(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		Watchers:      r.GetWatchersCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		SizeKB:        r.GetSize(),
		HasIssues:     r.GetHasIssues(),
		HasWiki:       r.GetHasWiki(),
		HasProjects:   r.GetHasProjects(),
		Archived:      r.GetArchived(),
		Private:       r.GetPrivate(),
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
		PushedAt:      r.GetPushedAt().Time,
	}
}

// mapIssue converts a go-github Issue to a TrackedItem.
func mapIssue(i *gh.Issue) model.TrackedItem {
	state := model.IssueStateOpen
	if i.GetState() == "closed" {
		state = model.IssueStateClosed
	}

	return model.TrackedItem{
		Number: i.GetNumber(),
		Title:  i.GetTitle(),
		State:  state,
		NodeID: i.GetNodeID(),
	}
}
