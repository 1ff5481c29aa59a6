package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

// ErrNoSnapshot indicates the store holds no batch to read.
var ErrNoSnapshot = errors.New("no snapshot found")

// SnapshotStore defines the driven port for dated record batches.
//
// Append never merges records across observation instants. LoadLatest returns
// only the records that share the maximum observation instant present.
// Dates are model.DateKey strings.
type SnapshotStore interface {
	Append(ctx context.Context, kind model.SnapshotKind, records []model.Record, observedAt time.Time) error
	LoadLatest(ctx context.Context, kind model.SnapshotKind) (*model.Snapshot, error)
	// ListDates returns every date holding a batch of kind, newest first. An
	// empty store yields an empty slice.
	ListDates(ctx context.Context, kind model.SnapshotKind) ([]string, error)
	// LoadByDate is LoadLatest restricted to batches filed under date.
	LoadByDate(ctx context.Context, kind model.SnapshotKind, date string) (*model.Snapshot, error)
}
