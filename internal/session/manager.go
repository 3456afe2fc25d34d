// Package session manages server-side session records: loading with bounded
// retry, persisting with TTL, and invalidation.
package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/session/domain"
	"watchtrack/backend/internal/session/repository"
)

const (
	// loadAttempts bounds Get retries: one initial attempt plus two retries,
	// and only for transient/connection-class failures.
	loadAttempts = 3
	retryBackoff = 50 * time.Millisecond
)

// Manager wraps the session repository with lifecycle rules.
type Manager struct {
	repo repository.Repository
	ttl  time.Duration
	log  logging.Logger
}

func NewManager(repo repository.Repository, ttl time.Duration, log logging.Logger) *Manager {
	return &Manager{repo: repo, ttl: ttl, log: log}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Load fetches the record for id and classifies the outcome.
//
// Transient store failures are retried with a small linear backoff; if they
// exhaust, the session is Stale (retried on the next request, never treated
// as a logout). A corrupt blob is a deterministic failure: the record is
// deleted and the state is Invalidated. A missing record is Anonymous.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Record, domain.State) {
	var lastErr error
	for attempt := 1; attempt <= loadAttempts; attempt++ {
		rec, err := m.repo.Get(ctx, id)
		if err == nil {
			if rec == nil {
				return nil, domain.StateAnonymous
			}
			return rec, domain.StateAuthenticated
		}
		if errors.Is(err, repository.ErrCorruptRecord) {
			m.log.Warn(ctx, "invalidating corrupt session record", "session_id", id, "error", err)
			if derr := m.repo.Delete(ctx, id); derr != nil {
				m.log.Error(ctx, "failed to delete corrupt session", "session_id", id, "error", derr)
			}
			return nil, domain.StateInvalidated
		}
		if !isTransient(err) {
			m.log.Error(ctx, "session load failed", "session_id", id, "error", err)
			return nil, domain.StateInvalidated
		}
		lastErr = err
		if attempt < loadAttempts {
			select {
			case <-time.After(time.Duration(attempt) * retryBackoff):
			case <-ctx.Done():
				return nil, domain.StateStale
			}
		}
	}
	m.log.Warn(ctx, "session load retries exhausted", "session_id", id, "error", lastErr)
	return nil, domain.StateStale
}

// Save upserts the record with the configured TTL.
func (m *Manager) Save(ctx context.Context, rec *domain.Record) error {
	return m.repo.Put(ctx, rec, m.ttl)
}

// Touch bumps the record's last-checked timestamp. Best-effort: failures are
// logged and not returned, since the field is advisory.
func (m *Manager) Touch(ctx context.Context, id string) {
	if err := m.repo.Touch(ctx, id, time.Now().UTC()); err != nil {
		m.log.Warn(ctx, "session touch failed", "session_id", id, "error", err)
	}
}

// Invalidate removes the record. Idempotent: invalidating a missing session
// succeeds.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	return m.repo.Delete(ctx, id)
}

// PurgeExpired removes expired records; intended to run periodically.
func (m *Manager) PurgeExpired(ctx context.Context) {
	n, err := m.repo.DeleteExpired(ctx)
	if err != nil {
		m.log.Warn(ctx, "session purge failed", "error", err)
		return
	}
	if n > 0 {
		m.log.Info(ctx, "purged expired sessions", "count", n)
	}
}

// isTransient reports whether err is a connection-class failure worth
// retrying. Logical outcomes (missing rows, corrupt blobs) never reach here.
func isTransient(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception; 57P0x: server shutdown.
		code := pgErr.Code
		return len(code) >= 2 && (code[:2] == "08" || code == "57P01" || code == "57P02" || code == "57P03")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
