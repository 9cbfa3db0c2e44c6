package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"pcbtrack-api/domain"
)

// Partition keys for the single-partition tables. Change-log entries are
// partitioned by board id instead so a board's audit trail can be read
// and purged as one partition.
const (
	boardsPartition = "board"
	usersPartition  = "user"
)

type notFoundError struct{ msg string }

func (e notFoundError) Error() string { return e.msg }
func (e notFoundError) NotFound()     {}

type eventQueue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Storage provides access to underlying persistence mechanisms.
type Storage struct {
	boardTable     *aztables.Client
	changeLogTable *aztables.Client
	userTable      *aztables.Client
	eventQueue     eventQueue
}

// New creates a Storage instance from the given connection string.
func New(connStr, boardsTable, changeLogTable, usersTable, eventQueueName string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventQueueName, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		boardTable:     svc.NewClient(boardsTable),
		changeLogTable: svc.NewClient(changeLogTable),
		userTable:      svc.NewClient(usersTable),
		eventQueue:     eq,
	}, nil
}

type boardEntity struct {
	aztables.Entity
	BoardName      string `json:"BoardName"`
	PartNumber     string `json:"PartNumber"`
	Revision       string `json:"Revision"`
	Project        string `json:"Project"`
	ArrivedDate    string `json:"ArrivedDate"`
	IsArrived      bool   `json:"IsArrived"`
	PassFailStatus string `json:"PassFailStatus"`
	IsNewRevision  bool   `json:"IsNewRevision"`
	StagesJSON     string `json:"StagesJSON"`
	CreatedAt      string `json:"CreatedAt"`
	UpdatedAt      string `json:"UpdatedAt"`
	IsDeleted      bool   `json:"IsDeleted"`
	DeletedAt      string `json:"DeletedAt"`
}

func boardToEntity(b *domain.Board) (boardEntity, error) {
	stages, err := json.Marshal(b.Stages)
	if err != nil {
		return boardEntity{}, fmt.Errorf("encode stages for board %s: %w", b.ID, err)
	}
	ent := boardEntity{
		Entity:        aztables.Entity{PartitionKey: boardsPartition, RowKey: b.ID},
		BoardName:     b.BoardName,
		PartNumber:    b.PartNumber,
		Revision:      b.Revision,
		Project:       b.Project,
		ArrivedDate:   b.ArrivedDate,
		IsArrived:     b.IsArrived,
		IsNewRevision: b.IsNewRevision,
		StagesJSON:    string(stages),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
		IsDeleted:     b.IsDeleted,
	}
	if b.PassFailStatus != nil {
		ent.PassFailStatus = *b.PassFailStatus
	}
	if b.DeletedAt != nil {
		ent.DeletedAt = *b.DeletedAt
	}
	return ent, nil
}

// decodeBoardEntity decodes a stored board and lifts it onto the current
// template schema, so callers only ever see current-shape boards.
func decodeBoardEntity(data []byte) (*domain.Board, error) {
	var ent boardEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	b := &domain.Board{
		ID:            ent.RowKey,
		BoardName:     ent.BoardName,
		PartNumber:    ent.PartNumber,
		Revision:      ent.Revision,
		Project:       ent.Project,
		ArrivedDate:   ent.ArrivedDate,
		IsArrived:     ent.IsArrived,
		IsNewRevision: ent.IsNewRevision,
		CreatedAt:     ent.CreatedAt,
		IsDeleted:     ent.IsDeleted,
	}
	if ent.PassFailStatus != "" {
		v := ent.PassFailStatus
		b.PassFailStatus = &v
	}
	if ent.DeletedAt != "" {
		v := ent.DeletedAt
		b.DeletedAt = &v
	}
	if ent.StagesJSON != "" {
		if err := json.Unmarshal([]byte(ent.StagesJSON), &b.Stages); err != nil {
			return nil, fmt.Errorf("decode stages for board %s: %w", b.ID, err)
		}
	}
	return domain.MigrateBoard(b), nil
}

// ListBoards retrieves all boards, newest first. Soft-deleted boards are
// included only when requested.
func (s *Storage) ListBoards(ctx context.Context, includeDeleted bool) ([]domain.Board, error) {
	filter := "PartitionKey eq '" + boardsPartition + "'"
	if !includeDeleted {
		filter += " and IsDeleted eq false"
	}
	pager := s.boardTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	boards := []domain.Board{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			b, err := decodeBoardEntity(e)
			if err != nil {
				return nil, err
			}
			boards = append(boards, *b)
		}
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].CreatedAt > boards[j].CreatedAt })
	return boards, nil
}

// GetBoard retrieves a single board by id.
func (s *Storage) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	ent, err := s.boardTable.GetEntity(ctx, boardsPartition, id, nil)
	if err != nil {
		if isStatusCode(err, 404) {
			return nil, notFoundError{msg: "board " + id + " not found"}
		}
		return nil, err
	}
	return decodeBoardEntity(ent.Value)
}

// InsertBoard stores a newly created board.
func (s *Storage) InsertBoard(ctx context.Context, b *domain.Board) error {
	return s.upsertBoard(ctx, b)
}

// UpdateBoard replaces a stored board. The board must already exist.
func (s *Storage) UpdateBoard(ctx context.Context, b *domain.Board) error {
	if _, err := s.boardTable.GetEntity(ctx, boardsPartition, b.ID, nil); err != nil {
		if isStatusCode(err, 404) {
			return notFoundError{msg: "board " + b.ID + " not found"}
		}
		return err
	}
	return s.upsertBoard(ctx, b)
}

func (s *Storage) upsertBoard(ctx context.Context, b *domain.Board) error {
	ent, err := boardToEntity(b)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.boardTable.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// DeleteBoard removes a board permanently, along with its change-log
// partition.
func (s *Storage) DeleteBoard(ctx context.Context, id string) error {
	if _, err := s.boardTable.DeleteEntity(ctx, boardsPartition, id, nil); err != nil {
		if isStatusCode(err, 404) {
			return notFoundError{msg: "board " + id + " not found"}
		}
		return err
	}
	return s.purgeChangeLog(ctx, id)
}

type changeLogEntity struct {
	aztables.Entity
	LoggedAt  string `json:"LoggedAt"`
	UserRole  string `json:"UserRole"`
	UserName  string `json:"UserName"`
	BoardName string `json:"BoardName"`
	Revision  string `json:"Revision"`
	Stage     string `json:"Stage"`
	Task      string `json:"Task"`
	Field     string `json:"Field"`
	OldValue  string `json:"OldValue"`
	NewValue  string `json:"NewValue"`
}

// AppendChangeLog stores one audit record, keyed by board id.
func (s *Storage) AppendChangeLog(ctx context.Context, e domain.ChangeLogEntry) error {
	ent := changeLogEntity{
		Entity:    aztables.Entity{PartitionKey: e.BoardID, RowKey: e.ID},
		LoggedAt:  e.Timestamp,
		UserRole:  string(e.UserRole),
		UserName:  e.UserName,
		BoardName: e.BoardName,
		Revision:  e.Revision,
		Stage:     e.Stage,
		Task:      e.Task,
		Field:     e.Field,
		OldValue:  e.OldValue,
		NewValue:  e.NewValue,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.changeLogTable.AddEntity(ctx, data, nil)
	return err
}

// ListChangeLog retrieves audit records, newest first. An empty boardID
// returns the full log.
func (s *Storage) ListChangeLog(ctx context.Context, boardID string) ([]domain.ChangeLogEntry, error) {
	var opts *aztables.ListEntitiesOptions
	if boardID != "" {
		filter := "PartitionKey eq '" + boardID + "'"
		opts = &aztables.ListEntitiesOptions{Filter: &filter}
	}
	pager := s.changeLogTable.NewListEntitiesPager(opts)
	entries := []domain.ChangeLogEntry{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent changeLogEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			entries = append(entries, domain.ChangeLogEntry{
				ID:        ent.RowKey,
				Timestamp: ent.LoggedAt,
				UserRole:  domain.UserRole(ent.UserRole),
				UserName:  ent.UserName,
				BoardID:   ent.PartitionKey,
				BoardName: ent.BoardName,
				Revision:  ent.Revision,
				Stage:     ent.Stage,
				Task:      ent.Task,
				Field:     ent.Field,
				OldValue:  ent.OldValue,
				NewValue:  ent.NewValue,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp > entries[j].Timestamp })
	return entries, nil
}

func (s *Storage) purgeChangeLog(ctx context.Context, boardID string) error {
	filter := "PartitionKey eq '" + boardID + "'"
	pager := s.changeLogTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, raw := range resp.Entities {
			var ent changeLogEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return err
			}
			if _, err := s.changeLogTable.DeleteEntity(ctx, ent.PartitionKey, ent.RowKey, nil); err != nil && !isStatusCode(err, 404) {
				return err
			}
		}
	}
	return nil
}

type userEntity struct {
	aztables.Entity
	Name string `json:"Name"`
}

// ListUsers returns all known user names in alphabetical order.
func (s *Storage) ListUsers(ctx context.Context) ([]string, error) {
	filter := "PartitionKey eq '" + usersPartition + "'"
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	names := []string{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent userEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			names = append(names, ent.RowKey)
		}
	}
	sort.Strings(names)
	return names, nil
}

// AddUser records a user name. Adding an existing name is a no-op.
func (s *Storage) AddUser(ctx context.Context, name string) error {
	ent := userEntity{
		Entity: aztables.Entity{PartitionKey: usersPartition, RowKey: name},
		Name:   name,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.userTable.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// RemoveUser deletes a user name.
func (s *Storage) RemoveUser(ctx context.Context, name string) error {
	if _, err := s.userTable.DeleteEntity(ctx, usersPartition, name, nil); err != nil {
		if isStatusCode(err, 404) {
			return notFoundError{msg: "user " + name + " not found"}
		}
		return err
	}
	return nil
}

// PublishBoardEvent sends a board event to the events queue.
func (s *Storage) PublishBoardEvent(ctx context.Context, ev domain.BoardEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

func isStatusCode(err error, code int) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == code
	}
	return false
}
