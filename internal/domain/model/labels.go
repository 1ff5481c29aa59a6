package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Display labels shared by the snapshot stores and the issue body.
const (
	LabelYes          = "yes"
	LabelNo           = "no"
	LabelNone         = "none"
	LabelNoRelease    = "no release"
	LabelNoTopics     = "no topics"
	LabelNoDesc       = "no description"
	LabelNoLicense    = "no license"
	LabelNoLanguage   = "unknown"
	LabelArchived     = "archived"
	LabelActive       = "active"
	LabelPrivate      = "private"
	LabelPublic       = "public"
	LabelSourcePush   = "Push"
	LabelSourceIssue  = "Issue update"
	DateLayout        = "2006-01-02"
	displayOffsetSecs = 9 * 60 * 60
)

// DisplayZone is the fixed offset used for the local-time snapshot column
// and for dating snapshot files.
var DisplayZone = time.FixedZone("UTC+09:00", displayOffsetSecs)

// YesNo renders a boolean feature flag.
func YesNo(b bool) string {
	if b {
		return LabelYes
	}
	return LabelNo
}

// ParseYesNo is the inverse of YesNo. Anything but LabelYes is false.
func ParseYesNo(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), LabelYes)
}

// SizeDisplay renders a size in KB as "N MB" (floored) from 1024 KB up, or "N KB".
func SizeDisplay(sizeKB int) string {
	if sizeKB >= 1024 {
		return fmt.Sprintf("%d MB", sizeKB/1024)
	}
	return fmt.Sprintf("%d KB", sizeKB)
}

var sizePattern = regexp.MustCompile(`(?i)^(\d+)\s*(MB|KB)$`)

// ParseSizeDisplay converts a SizeDisplay string back to KB. MB values come
// back as whole multiples of 1024. Unparseable input yields 0.
func ParseSizeDisplay(s string) int {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	if strings.EqualFold(m[2], "MB") {
		return n * 1024
	}
	return n
}

// FormatDate renders t as YYYY-MM-DD in UTC, or LabelNone for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return LabelNone
	}
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a FormatDate string. LabelNone and empty input yield the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == LabelNone {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

// ReleaseDisplay renders the latest release as "tag (YYYY-MM-DD)".
func ReleaseDisplay(r *Release) string {
	if r == nil {
		return LabelNoRelease
	}
	return fmt.Sprintf("%s (%s)", r.TagName, FormatDate(r.PublishedAt))
}

var releasePattern = regexp.MustCompile(`^(.+) \((\d{4}-\d{2}-\d{2})\)$`)

// ParseReleaseDisplay is the inverse of ReleaseDisplay.
func ParseReleaseDisplay(s string) *Release {
	m := releasePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	published, err := time.Parse(DateLayout, m[2])
	if err != nil {
		return nil
	}
	return &Release{TagName: m[1], PublishedAt: published}
}

// TopicsDisplay joins topics with ", ", or returns LabelNoTopics.
func TopicsDisplay(topics []string) string {
	if len(topics) == 0 {
		return LabelNoTopics
	}
	return strings.Join(topics, ", ")
}

// ParseTopicsDisplay is the inverse of TopicsDisplay.
func ParseTopicsDisplay(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == LabelNoTopics {
		return []string{}
	}
	var topics []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// ArchiveLabel renders the archived flag.
func ArchiveLabel(archived bool) string {
	if archived {
		return LabelArchived
	}
	return LabelActive
}

// VisibilityLabel renders the private flag.
func VisibilityLabel(private bool) string {
	if private {
		return LabelPrivate
	}
	return LabelPublic
}

// SourceLabel renders which timestamp won the activity comparison.
func SourceLabel(s ActivitySource) string {
	if s == ActivityIssueUpdate {
		return LabelSourceIssue
	}
	return LabelSourcePush
}

// ParseSourceLabel is the inverse of SourceLabel.
func ParseSourceLabel(s string) ActivitySource {
	if strings.EqualFold(strings.TrimSpace(s), LabelSourceIssue) {
		return ActivityIssueUpdate
	}
	return ActivityPush
}

// OrPlaceholder returns s, or placeholder when s is empty.
func OrPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
