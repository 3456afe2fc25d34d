package repository

import (
	"context"
	"sort"
	"sync"

	"watchtrack/backend/internal/watchlist/domain"
)

// MemoryRepository is an in-process item store used in tests.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*domain.Item
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[int64]*domain.Item)}
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID int64) ([]*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*domain.Item
	for _, item := range r.items {
		if item.UserID == userID {
			copied := *item
			items = append(items, &copied)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (r *MemoryRepository) Create(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	item.ID = r.nextID
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[item.ID]; ok {
		copied := *item
		copied.UserID = existing.UserID
		copied.CreatedAt = existing.CreatedAt
		r.items[item.ID] = &copied
	}
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}
