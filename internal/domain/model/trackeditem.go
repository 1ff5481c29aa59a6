package model

// TrackedItem is a remote issue that mirrors one repository. Its title is the
// repository name.
type TrackedItem struct {
	Number int
	Title  string
	State  IssueState
	// NodeID is the global content identifier used by the board API. It is
	// only populated when fetched explicitly.
	NodeID string
}

// Closed reports whether the item is in the closed state.
func (t TrackedItem) Closed() bool {
	return t.State == IssueStateClosed
}

// BoardInfo is the resolved board for one sync run.
type BoardInfo struct {
	ProjectID     string
	StatusFieldID string
	// Options maps each bucket to the board's single-select option id. A
	// bucket is absent when the board has no option for it.
	Options map[RecencyBucket]string
}

// OptionFor returns the option id for the bucket, if the board defines one.
func (b *BoardInfo) OptionFor(bucket RecencyBucket) (string, bool) {
	if b == nil {
		return "", false
	}
	id, ok := b.Options[bucket]
	return id, ok
}

// BoardField is a single-select field as reported by the board API.
type BoardField struct {
	ID      string
	Name    string
	Options []BoardOption
}

// BoardOption is one choice of a single-select field.
type BoardOption struct {
	ID   string
	Name string
}

// BoardItem is a board entry and the content id it points at.
type BoardItem struct {
	ID        string
	ContentID string
}

// SyncReport is the terminal tally of one orchestrator run.
type SyncReport struct {
	Total     int
	Processed int
	Errors    int
	Created   int
	Updated   int
	Placed    int
}
