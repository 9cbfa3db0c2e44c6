package api

import (
	"context"

	"pcbtrack-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListBoards(ctx context.Context, includeDeleted bool) ([]domain.Board, error)
	GetBoard(ctx context.Context, id string) (*domain.Board, error)
	InsertBoard(ctx context.Context, b *domain.Board) error
	UpdateBoard(ctx context.Context, b *domain.Board) error
	DeleteBoard(ctx context.Context, id string) error
	AppendChangeLog(ctx context.Context, e domain.ChangeLogEntry) error
	ListChangeLog(ctx context.Context, boardID string) ([]domain.ChangeLogEntry, error)
	ListUsers(ctx context.Context) ([]string, error)
	AddUser(ctx context.Context, name string) error
	RemoveUser(ctx context.Context, name string) error
}

// Publisher sends board events to downstream consumers.
type Publisher interface {
	PublishBoardEvent(ctx context.Context, ev domain.BoardEvent) error
}

// NotFoundError marks storage errors for entities that do not exist, so
// handlers can answer 404 instead of 500.
type NotFoundError interface {
	error
	NotFound()
}

// Deduper prevents reprocessing of retried toggle requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, boardID, key string) (bool, error)
	// Remove deletes a previously added key, used when the toggle fails.
	Remove(ctx context.Context, boardID, key string) error
}
