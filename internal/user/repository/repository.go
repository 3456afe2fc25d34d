package repository

import (
	"context"
	"errors"

	"watchtrack/backend/internal/user/domain"
)

// ErrDuplicateUsername is returned by Create when the username is already taken.
// The check runs before the insert so callers always see this error rather than
// a driver-specific constraint violation.
var ErrDuplicateUsername = errors.New("username already taken")

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
