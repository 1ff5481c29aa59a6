package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// DefaultStatusField is the board field used when none is configured.
const DefaultStatusField = "Status"

// BoardService resolves a kanban board and places tracked items on it.
type BoardService struct {
	client driven.BoardClient
	exec   *Executor
}

// NewBoardService creates a BoardService.
func NewBoardService(client driven.BoardClient, exec *Executor) *BoardService {
	return &BoardService{client: client, exec: exec}
}

// Resolve fetches the board and builds the bucket to option mapping for the
// single-select field named statusField. A missing board or field is a
// *ConfigurationError; any other failure is returned as is.
func (s *BoardService) Resolve(ctx context.Context, owner string, number int, statusField string) (*model.BoardInfo, error) {
	if statusField == "" {
		statusField = DefaultStatusField
	}

	board, err := Do(ctx, s.exec, func(ctx context.Context) (*driven.Board, error) {
		return s.client.GetBoard(ctx, owner, number)
	})
	if err != nil {
		if errors.Is(err, driven.ErrBoardNotFound) || ClassifyError(err) == ErrClassNotFound {
			return nil, &ConfigurationError{
				Message: fmt.Sprintf("board %d could not be found for %s; check the project settings", number, owner),
				Err:     err,
			}
		}
		return nil, fmt.Errorf("fetching board %d for %s: %w", number, owner, err)
	}
	if board == nil || board.ID == "" {
		return nil, &ConfigurationError{
			Message: fmt.Sprintf("board %d could not be found for %s; check the project settings", number, owner),
		}
	}

	var field *model.BoardField
	for i := range board.Fields {
		if board.Fields[i].Name == statusField {
			field = &board.Fields[i]
			break
		}
	}
	if field == nil {
		return nil, &ConfigurationError{
			Message: fmt.Sprintf("board %d has no single-select field named %q", number, statusField),
		}
	}

	info := &model.BoardInfo{
		ProjectID:     board.ID,
		StatusFieldID: field.ID,
		Options:       make(map[model.RecencyBucket]string, len(field.Options)),
	}
	for _, opt := range field.Options {
		if bucket, ok := model.ParseBucketLabel(opt.Name); ok {
			info.Options[bucket] = opt.ID
		}
	}

	for _, bucket := range model.Buckets {
		if _, ok := info.Options[bucket]; !ok {
			slog.Warn("board has no option for bucket", "bucket", bucket, "label", bucket.Label(), "field", statusField)
		}
	}

	return info, nil
}

// UpsertPlacement puts the content on the board and sets its status option
// for bucket. It reports whether the status field was written; a bucket with
// no configured option is skipped with a warning and is not an error.
//
// A failed add falls back to searching the first page of board items for the
// content, because an already-added item cannot be told apart from other add
// failures.
func (s *BoardService) UpsertPlacement(ctx context.Context, info *model.BoardInfo, contentID string, bucket model.RecencyBucket) (bool, error) {
	itemID, err := Do(ctx, s.exec, func(ctx context.Context) (string, error) {
		return s.client.AddItem(ctx, info.ProjectID, contentID)
	})
	if err != nil {
		slog.Debug("add to board failed, looking up existing item", "content_id", contentID, "error", err)

		itemID, err = s.findItem(ctx, info.ProjectID, contentID, err)
		if err != nil {
			return false, err
		}
	}

	optionID, ok := info.OptionFor(bucket)
	if !ok {
		slog.Warn("no board option for bucket, skipping status update", "bucket", bucket, "label", bucket.Label())
		return false, nil
	}

	err = s.exec.Run(ctx, func(ctx context.Context) error {
		return s.client.SetSingleSelect(ctx, info.ProjectID, itemID, info.StatusFieldID, optionID)
	})
	if err != nil {
		return false, fmt.Errorf("setting board status for item %s: %w", itemID, err)
	}

	return true, nil
}

func (s *BoardService) findItem(ctx context.Context, projectID, contentID string, addErr error) (string, error) {
	items, err := Do(ctx, s.exec, func(ctx context.Context) ([]model.BoardItem, error) {
		return s.client.ListItems(ctx, projectID)
	})
	if err != nil {
		return "", fmt.Errorf("listing board items after add failed (%w): %w", addErr, err)
	}

	for _, item := range items {
		if item.ContentID == contentID {
			return item.ID, nil
		}
	}

	return "", fmt.Errorf("content %s after add failed (%w): %w", contentID, addErr, driven.ErrBoardItemNotFound)
}
