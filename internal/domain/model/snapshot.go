package model

import (
	"strings"
	"time"
)

// Snapshot is an immutable batch of records observed at one shared instant.
type Snapshot struct {
	ObservedAt time.Time // UTC
	Records    []Record
}

// SnapshotKind selects between full rows and reduced summary rows.
type SnapshotKind string

const (
	SnapshotFull    SnapshotKind = "full"
	SnapshotSummary SnapshotKind = "summary"
)

// DateKey returns the display-zone calendar date under which a batch observed
// at t is filed, as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.In(DisplayZone).Format(DateLayout)
}

// ParseDateKey parses a DateKey string to midnight of that day in DisplayZone.
func ParseDateKey(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), DisplayZone)
}
