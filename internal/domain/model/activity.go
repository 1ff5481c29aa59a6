package model

import "time"

// ActivityInfo is derived from a Repository at an observation instant. It is
// never persisted on its own.
type ActivityInfo struct {
	LastActivityAt    time.Time
	Source            ActivitySource
	DaysSinceActivity int
	Bucket            RecencyBucket
}

// Record pairs a repository with its derived activity.
type Record struct {
	Repository
	Activity ActivityInfo
}
