package repository

import (
	"context"
	"sync"
	"time"

	"watchtrack/backend/internal/session/domain"
)

type memoryEntry struct {
	rec       domain.Record
	expiresAt time.Time
}

// MemoryRepository is an in-process session repository. Used in tests and as a
// single-node fallback when no database is configured.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]*memoryEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*memoryEntry)}
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[id]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (r *MemoryRepository) Put(ctx context.Context, rec *domain.Record, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[rec.ID] = &memoryEntry{rec: *rec, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}

func (r *MemoryRepository) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.m[id]; ok {
		e.rec.LastCheckedAt = at
	}
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for id, e := range r.m {
		if now.After(e.expiresAt) {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}
