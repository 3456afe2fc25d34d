package auth

import (
	"context"
	"fmt"

	"watchtrack/backend/internal/audit"
	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/security"
	"watchtrack/backend/internal/session"
	sessiondomain "watchtrack/backend/internal/session/domain"
	userrepo "watchtrack/backend/internal/user/repository"
)

// Method records which signal resolved the identity, cheapest first.
type Method string

const (
	MethodSession   Method = "session"
	MethodToken     Method = "token"
	MethodRecovered Method = "recovered"
)

// Identity is the resolved caller identity attached to request context.
type Identity struct {
	UserID      int64
	Username    string
	DisplayName string
	Role        string
}

// Credentials are the ambient signals extracted from an inbound request.
// UserIDHint is a client-supplied header value; it is never proof of identity
// and is only recorded for audit when a recovery resolution happens.
type Credentials struct {
	SessionID  string
	Bearer     string
	UserIDHint string
}

// Resolution is a successful identity resolution.
type Resolution struct {
	Identity  Identity
	Method    Method
	SessionID string
}

// Resolver turns request signals into a single authenticated identity.
//
// Trust order: a live authenticated session, then a cryptographically
// verified bearer token, then the session's recovery snapshot (checked
// against the credential store and marked recovered). Anything else fails as
// unauthenticated. A transient session-store outage never widens trust: with
// no other signal it collapses to unauthenticated (fail closed).
type Resolver struct {
	sessions *session.Manager
	tokens   *security.TokenProvider
	users    userrepo.Repository
	audit    audit.AuditLogger
	log      logging.Logger
}

func NewResolver(
	sessions *session.Manager,
	tokens *security.TokenProvider,
	users userrepo.Repository,
	auditLog audit.AuditLogger,
	log logging.Logger,
) *Resolver {
	return &Resolver{sessions: sessions, tokens: tokens, users: users, audit: auditLog, log: log}
}

// Resolve establishes the caller identity or returns ErrUnauthenticated.
// On success via the session or token path it idempotently bumps the
// session's last-checked timestamp.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*Resolution, error) {
	var rec *sessiondomain.Record
	var state sessiondomain.State

	if creds.SessionID != "" {
		rec, state = r.sessions.Load(ctx, creds.SessionID)
		if state == sessiondomain.StateAuthenticated && rec.Authenticated && rec.Identity != nil {
			r.sessions.Touch(ctx, creds.SessionID)
			return &Resolution{
				Identity:  fromSnapshot(rec.Identity),
				Method:    MethodSession,
				SessionID: creds.SessionID,
			}, nil
		}
	}

	if creds.Bearer != "" {
		claims, err := r.tokens.Verify(creds.Bearer)
		if err == nil {
			if rec != nil {
				r.sessions.Touch(ctx, creds.SessionID)
			}
			return &Resolution{
				Identity: Identity{
					UserID:      claims.UserID(),
					Username:    claims.Username,
					DisplayName: claims.DisplayName,
					Role:        claims.Role,
				},
				Method:    MethodToken,
				SessionID: creds.SessionID,
			}, nil
		}
		r.log.Debug(ctx, "bearer token rejected", "reason", err)
	}

	if rec != nil && rec.Recovery != nil {
		return r.resolveRecovery(ctx, creds, rec)
	}

	return nil, ErrUnauthenticated
}

// resolveRecovery is the last-resort path: the session lost its primary
// identity marker but kept a recovery snapshot. It counts only if the
// referenced user still exists; the outcome is audited so degraded-confidence
// resolutions stay observable.
func (r *Resolver) resolveRecovery(ctx context.Context, creds Credentials, rec *sessiondomain.Record) (*Resolution, error) {
	user, err := r.users.GetByID(ctx, rec.Recovery.UserID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if user == nil {
		// Deterministic failure: the user is gone, so the session must not be
		// resurrected on a later request.
		if err := r.sessions.Invalidate(ctx, creds.SessionID); err != nil {
			r.log.Warn(ctx, "failed to invalidate orphaned session", "session_id", creds.SessionID, "error", err)
		}
		return nil, ErrUnauthenticated
	}
	meta := ""
	if creds.UserIDHint != "" {
		meta = fmt.Sprintf("client hint user_id=%s", creds.UserIDHint)
	}
	r.audit.LogEvent(ctx, user.ID, audit.ActionRecovered, audit.ResourceSession, meta)
	r.log.Warn(ctx, "session resolved via recovery snapshot",
		"session_id", creds.SessionID, "user_id", user.ID)
	return &Resolution{
		Identity: Identity{
			UserID:      user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Role:        user.Role,
		},
		Method:    MethodRecovered,
		SessionID: creds.SessionID,
	}, nil
}

func fromSnapshot(s *sessiondomain.Snapshot) Identity {
	return Identity{
		UserID:      s.UserID,
		Username:    s.Username,
		DisplayName: s.DisplayName,
		Role:        s.Role,
	}
}
