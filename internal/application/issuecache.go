package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// IssueCache indexes a container's existing issues by exact title. It is
// owned by a single sync run and is not safe for concurrent use.
type IssueCache struct {
	byTitle map[string]model.TrackedItem
}

// NewIssueCache returns an empty cache.
func NewIssueCache() *IssueCache {
	return &IssueCache{byTitle: make(map[string]model.TrackedItem)}
}

// Lookup returns the item whose title equals title.
func (c *IssueCache) Lookup(title string) (model.TrackedItem, bool) {
	item, ok := c.byTitle[title]
	return item, ok
}

// Put records item under its title, replacing any previous entry.
func (c *IssueCache) Put(item model.TrackedItem) {
	c.byTitle[item.Title] = item
}

// Len returns the number of distinct titles cached.
func (c *IssueCache) Len() int {
	return len(c.byTitle)
}

// add keeps the lowest-numbered issue when a title is already present, so
// the oldest mirror wins over accidental duplicates.
func (c *IssueCache) add(item model.TrackedItem) {
	if existing, ok := c.byTitle[item.Title]; ok && existing.Number < item.Number {
		return
	}
	c.byTitle[item.Title] = item
}

// BuildIssueCache pages through every issue of owner/repo in all states,
// pull requests excluded, pausing between pages. A failed page ends the build
// and the partial cache is returned.
func BuildIssueCache(ctx context.Context, tracker driven.IssueTracker, exec *Executor, owner, repo string, pagePause time.Duration, sleep SleepFunc) *IssueCache {
	if sleep == nil {
		sleep = Sleep
	}

	slog.Info("caching existing issues", "repo", owner+"/"+repo)
	cache := NewIssueCache()

	for page := 1; ; page++ {
		result, err := Do(ctx, exec, func(ctx context.Context) (driven.IssuePage, error) {
			return tracker.ListIssues(ctx, owner, repo, page, pageSize)
		})
		if err != nil {
			slog.Error("issue listing failed, continuing with partial cache",
				"repo", owner+"/"+repo,
				"page", page,
				"cached", cache.Len(),
				"error", err,
			)
			break
		}

		for _, item := range result.Items {
			cache.add(item)
		}

		if result.RawLen() < pageSize {
			break
		}

		if err := sleep(ctx, pagePause); err != nil {
			break
		}
	}

	slog.Info("issues cached", "repo", owner+"/"+repo, "count", cache.Len())
	return cache
}
