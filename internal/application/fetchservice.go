package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// pageSize is the listing page size used for every paginated remote call.
const pageSize = 100

// FetchService builds full repository records for an account. Remote calls
// are issued one at a time in listing order.
type FetchService struct {
	source driven.RepositorySource
	exec   *Executor
}

// NewFetchService creates a FetchService.
func NewFetchService(source driven.RepositorySource, exec *Executor) *FetchService {
	return &FetchService{source: source, exec: exec}
}

// FetchAll pages through the account's repositories, most recently updated
// first, and fetches each one's details.
//
// A failed listing page stops pagination and the records gathered so far are
// returned. A failed detail fetch aborts the whole call.
func (s *FetchService) FetchAll(ctx context.Context, account string) ([]model.Repository, error) {
	slog.Info("fetching repositories", "account", account)

	var repos []model.Repository

	for page := 1; ; page++ {
		refs, err := Do(ctx, s.exec, func(ctx context.Context) ([]driven.RepoRef, error) {
			return s.source.ListRepositories(ctx, account, page, pageSize)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Error("repository listing failed, returning partial results",
				"account", account,
				"page", page,
				"fetched", len(repos),
				"error", err,
			)
			break
		}

		for _, ref := range refs {
			repo, err := s.FetchRepository(ctx, ref.Owner, ref.Name)
			if err != nil {
				return nil, err
			}
			repos = append(repos, *repo)
			slog.Debug("repository fetched", "repo", ref.FullName())
		}

		if len(refs) < pageSize {
			break
		}
	}

	slog.Info("repositories fetched", "account", account, "count", len(repos))

	if repos == nil {
		repos = []model.Repository{}
	}
	return repos, nil
}

// FetchRepository fetches one repository's detail plus its best-effort
// sub-resources: latest release, latest issue activity, closed issue count and
// commit count.
func (s *FetchService) FetchRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	fullName := owner + "/" + name

	repo, err := Do(ctx, s.exec, func(ctx context.Context) (*model.Repository, error) {
		return s.source.GetRepository(ctx, owner, name)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s: %w", fullName, err)
	}

	repo.LatestRelease = s.latestRelease(ctx, owner, name)
	repo.LatestIssueUpdatedAt = s.latestIssueUpdate(ctx, owner, name)

	if repo.HasIssues {
		repo.ClosedIssues = s.closedIssueCount(ctx, owner, name)
	}
	repo.Commits = s.commitCount(ctx, owner, name)

	return repo, nil
}

func (s *FetchService) latestRelease(ctx context.Context, owner, name string) *model.Release {
	release, err := Do(ctx, s.exec, func(ctx context.Context) (*model.Release, error) {
		release, err := s.source.GetLatestRelease(ctx, owner, name)
		if ClassifyError(err) == ErrClassNotFound {
			return nil, nil
		}
		return release, err
	})
	if err != nil {
		slog.Warn("latest release lookup failed, treating as none", "repo", owner+"/"+name, "error", err)
		return nil
	}
	return release
}

func (s *FetchService) latestIssueUpdate(ctx context.Context, owner, name string) *time.Time {
	updated, err := Do(ctx, s.exec, func(ctx context.Context) (*time.Time, error) {
		updated, err := s.source.LatestIssueUpdate(ctx, owner, name)
		if ClassifyError(err) == ErrClassNotFound {
			return nil, nil
		}
		return updated, err
	})
	if err != nil {
		slog.Warn("latest issue lookup failed, treating as no activity", "repo", owner+"/"+name, "error", err)
		return nil
	}
	return updated
}

// closedIssueCount pages the closed listing and counts entries that are not
// pull requests, stopping at the first short page. Any failure yields 0.
func (s *FetchService) closedIssueCount(ctx context.Context, owner, name string) int {
	count := 0
	for page := 1; ; page++ {
		result, err := Do(ctx, s.exec, func(ctx context.Context) (driven.IssuePage, error) {
			return s.source.ListClosedIssues(ctx, owner, name, page, pageSize)
		})
		if err != nil {
			slog.Warn("closed issue count failed, using 0",
				"repo", owner+"/"+name,
				"page", page,
				"error", err,
			)
			return 0
		}

		count += len(result.Items)

		if result.RawLen() < pageSize {
			return count
		}
	}
}

func (s *FetchService) commitCount(ctx context.Context, owner, name string) int {
	n, err := Do(ctx, s.exec, func(ctx context.Context) (int, error) {
		return s.source.CommitCount(ctx, owner, name)
	})
	if err != nil {
		slog.Warn("commit count failed, using 0", "repo", owner+"/"+name, "error", err)
		return 0
	}
	return n
}
