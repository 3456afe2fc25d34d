package repository

import (
	"context"
	"errors"
	"time"

	"watchtrack/backend/internal/session/domain"
)

// ErrCorruptRecord is returned by Get when the stored blob cannot be decoded.
// This is a deterministic failure: callers must invalidate the session rather
// than retry.
var ErrCorruptRecord = errors.New("corrupt session record")

// Repository defines persistence for session records. Implementations store
// records as opaque blobs keyed by session id with TTL-based expiry.
type Repository interface {
	// Get returns the record for id, or nil if missing or expired.
	Get(ctx context.Context, id string) (*domain.Record, error)
	// Put upserts the record with the given time-to-live.
	Put(ctx context.Context, rec *domain.Record, ttl time.Duration) error
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
	// Touch bumps the record's last-checked timestamp. Advisory only:
	// concurrent touches are last-write-wins.
	Touch(ctx context.Context, id string, at time.Time) error
	// DeleteExpired removes expired records and returns how many were deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}
