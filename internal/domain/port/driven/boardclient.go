package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repoobserver/internal/domain/model"
)

// ErrBoardNotFound indicates the owner has no board with the requested number.
var ErrBoardNotFound = errors.New("board not found")

// ErrBoardItemNotFound indicates that a content item is not on the board.
var ErrBoardItemNotFound = errors.New("board item not found")

// Board is a board and its single-select fields.
type Board struct {
	ID     string
	Fields []model.BoardField
}

// BoardClient defines the driven port for the kanban board API.
type BoardClient interface {
	// GetBoard resolves a board by owning account and number. It returns
	// ErrBoardNotFound (possibly wrapped) when the board does not exist.
	GetBoard(ctx context.Context, owner string, number int) (*Board, error)
	// AddItem adds the content to the board and returns the board item id.
	AddItem(ctx context.Context, projectID, contentID string) (string, error)
	// ListItems returns the first page (up to 100) of board items.
	ListItems(ctx context.Context, projectID string) ([]model.BoardItem, error)
	// SetSingleSelect sets a single-select field value on a board item.
	SetSingleSelect(ctx context.Context, projectID, itemID, fieldID, optionID string) error
}
