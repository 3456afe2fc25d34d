package repository

import (
	"context"

	"watchtrack/backend/internal/watchlist/domain"
)

// Repository defines persistence for watchlist items.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Item, error)
	Create(ctx context.Context, item *domain.Item) error
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id int64) error
}
