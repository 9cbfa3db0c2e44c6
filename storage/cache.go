package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"pcbtrack-api/domain"
)

type backend interface {
	ListBoards(ctx context.Context, includeDeleted bool) ([]domain.Board, error)
	GetBoard(ctx context.Context, id string) (*domain.Board, error)
	InsertBoard(ctx context.Context, b *domain.Board) error
	UpdateBoard(ctx context.Context, b *domain.Board) error
	DeleteBoard(ctx context.Context, id string) error
}

// Cache wraps a Storage instance with Redis-backed caching for board
// reads. Writes pass through and evict. Redis failures fall back to the
// backing storage and never fail the request.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis
// client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) ListBoards(ctx context.Context, includeDeleted bool) ([]domain.Board, error) {
	if boards, ok := c.loadBoardListFromCache(ctx, includeDeleted); ok {
		return boards, nil
	}

	boards, err := c.base.ListBoards(ctx, includeDeleted)
	if err != nil {
		return nil, err
	}

	c.storeBoardList(ctx, includeDeleted, boards)
	return boards, nil
}

func (c *Cache) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	if b, ok := c.loadBoardFromCache(ctx, id); ok {
		return b, nil
	}

	b, err := c.base.GetBoard(ctx, id)
	if err != nil {
		return nil, err
	}

	c.storeBoard(ctx, b)
	return b, nil
}

func (c *Cache) InsertBoard(ctx context.Context, b *domain.Board) error {
	if err := c.base.InsertBoard(ctx, b); err != nil {
		return err
	}

	c.evict(ctx, b.ID)
	return nil
}

func (c *Cache) UpdateBoard(ctx context.Context, b *domain.Board) error {
	if err := c.base.UpdateBoard(ctx, b); err != nil {
		return err
	}

	c.evict(ctx, b.ID)
	return nil
}

func (c *Cache) DeleteBoard(ctx context.Context, id string) error {
	if err := c.base.DeleteBoard(ctx, id); err != nil {
		return err
	}

	c.evict(ctx, id)
	return nil
}

func (c *Cache) loadBoardListFromCache(ctx context.Context, includeDeleted bool) ([]domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	key := boardListCacheKey(includeDeleted)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var boards []domain.Board
	if err := json.Unmarshal(data, &boards); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return boards, true
}

func (c *Cache) loadBoardFromCache(ctx context.Context, id string) (*domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, boardCacheKey(id)).Err()
		}
		return nil, false
	}
	var b domain.Board
	if err := json.Unmarshal(data, &b); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(id)).Err()
		return nil, false
	}
	return &b, true
}

func (c *Cache) storeBoardList(ctx context.Context, includeDeleted bool, boards []domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(boards)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardListCacheKey(includeDeleted), data, c.ttl).Err()
}

func (c *Cache) storeBoard(ctx context.Context, b *domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(b.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, id string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardListCacheKey(false), boardListCacheKey(true), boardCacheKey(id)).Result()
}

func boardListCacheKey(includeDeleted bool) string {
	if includeDeleted {
		return "boards:all"
	}
	return "boards:active"
}

func boardCacheKey(id string) string {
	return "board:" + id
}
