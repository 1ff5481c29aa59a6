package model

import "strings"

// RecencyBucket classifies a repository by days since its last activity.
type RecencyBucket string

const (
	BucketFrequent   RecencyBucket = "FREQUENT"
	BucketRegular    RecencyBucket = "REGULAR"
	BucketOccasional RecencyBucket = "OCCASIONAL"
	BucketRare       RecencyBucket = "RARE"
	BucketStale      RecencyBucket = "STALE"
	// BucketUnknown is only produced when a persisted status label cannot be
	// mapped back to a bucket.
	BucketUnknown RecencyBucket = "UNKNOWN"
)

// Buckets lists the classifiable buckets in ascending order of age.
var Buckets = []RecencyBucket{
	BucketFrequent,
	BucketRegular,
	BucketOccasional,
	BucketRare,
	BucketStale,
}

var bucketLabels = map[RecencyBucket]string{
	BucketFrequent:   "Frequently updated",
	BucketRegular:    "Regularly updated",
	BucketOccasional: "Occasionally updated",
	BucketRare:       "Rarely updated",
	BucketStale:      "Stale",
	BucketUnknown:    "Unknown",
}

var bucketDescriptions = map[RecencyBucket]string{
	BucketFrequent:   "updated within 7 days",
	BucketRegular:    "updated within 8-30 days",
	BucketOccasional: "updated within 31-180 days",
	BucketRare:       "updated within 181-365 days",
	BucketStale:      "no update for 366+ days",
	BucketUnknown:    "status unknown",
}

// Label returns the human-readable status label written to snapshots and
// used as the board option name.
func (b RecencyBucket) Label() string {
	if l, ok := bucketLabels[b]; ok {
		return l
	}
	return bucketLabels[BucketUnknown]
}

// Description returns the threshold range the bucket covers.
func (b RecencyBucket) Description() string {
	if d, ok := bucketDescriptions[b]; ok {
		return d
	}
	return bucketDescriptions[BucketUnknown]
}

// ParseBucketLabel maps a status label (or a bare bucket keyword such as
// "stale") back to its bucket. Matching is case-insensitive. Anything
// unrecognized yields BucketUnknown and false.
func ParseBucketLabel(s string) (RecencyBucket, bool) {
	s = strings.TrimSpace(s)
	for b, l := range bucketLabels {
		if b == BucketUnknown {
			continue
		}
		if strings.EqualFold(s, l) || strings.EqualFold(s, string(b)) {
			return b, true
		}
	}
	return BucketUnknown, false
}

// ActivitySource tags which timestamp determined the last activity.
type ActivitySource string

const (
	ActivityPush        ActivitySource = "push"
	ActivityIssueUpdate ActivitySource = "issue-update"
)

// IssueState is the lifecycle state of a tracked item.
type IssueState string

const (
	IssueStateOpen   IssueState = "open"
	IssueStateClosed IssueState = "closed"
)
