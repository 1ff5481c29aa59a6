package application

import (
	"math"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

// Bucket upper bounds in days, inclusive.
const (
	frequentMaxDays   = 7
	regularMaxDays    = 30
	occasionalMaxDays = 180
	rareMaxDays       = 365
)

// Classify derives ActivityInfo from a repository's push time and optional
// latest issue update, relative to now. It never returns BucketUnknown.
func Classify(pushedAt time.Time, issueUpdatedAt *time.Time, now time.Time) model.ActivityInfo {
	last := pushedAt
	source := model.ActivityPush
	if issueUpdatedAt != nil && issueUpdatedAt.After(pushedAt) {
		last = *issueUpdatedAt
		source = model.ActivityIssueUpdate
	}

	days := int(math.Floor(now.Sub(last).Hours() / 24))

	return model.ActivityInfo{
		LastActivityAt:    last,
		Source:            source,
		DaysSinceActivity: days,
		Bucket:            BucketForDays(days),
	}
}

// BucketForDays maps elapsed whole days to a bucket. First match wins.
func BucketForDays(days int) model.RecencyBucket {
	switch {
	case days <= frequentMaxDays:
		return model.BucketFrequent
	case days <= regularMaxDays:
		return model.BucketRegular
	case days <= occasionalMaxDays:
		return model.BucketOccasional
	case days <= rareMaxDays:
		return model.BucketRare
	default:
		return model.BucketStale
	}
}

// ClassifyRepository builds the Record for repo observed at now.
func ClassifyRepository(repo model.Repository, now time.Time) model.Record {
	return model.Record{
		Repository: repo,
		Activity:   Classify(repo.PushedAt, repo.LatestIssueUpdatedAt, now),
	}
}

// FilterRecords drops private and archived repositories unless included.
func FilterRecords(records []model.Record, includePrivate, includeArchived bool) []model.Record {
	filtered := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.Private && !includePrivate {
			continue
		}
		if r.Archived && !includeArchived {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
