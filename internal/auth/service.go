// Package auth implements the authentication core: credential verification,
// token issue/refresh, session creation, and request identity resolution.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"watchtrack/backend/internal/audit"
	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/security"
	"watchtrack/backend/internal/session"
	sessiondomain "watchtrack/backend/internal/session/domain"
	userdomain "watchtrack/backend/internal/user/domain"
	userrepo "watchtrack/backend/internal/user/repository"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	// ErrInvalidCredentials is deliberately generic: it never distinguishes an
	// unknown username from a wrong password.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// Result holds the outcome of Register or Login: the user, a signed identity
// token, and the freshly created session record.
type Result struct {
	User           *userdomain.User
	Token          string
	TokenExpiresAt time.Time
	Session        *sessiondomain.Record
}

// Service implements register, login, refresh, me, and logout.
type Service struct {
	users    userrepo.Repository
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	sessions *session.Manager
	audit    audit.AuditLogger
	log      logging.Logger
}

// NewService returns a Service with the given dependencies.
func NewService(
	users userrepo.Repository,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	sessions *session.Manager,
	auditLog audit.AuditLogger,
	log logging.Logger,
) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		audit:    auditLog,
		log:      log,
	}
}

// Register creates a user with the given username and password, then issues a
// token and a session so the caller is signed in immediately.
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*Result, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 3-32 characters (letters, digits, '_', '.', '-')", ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	user := &userdomain.User{
		Username:     username,
		PasswordHash: hashed,
		DisplayName:  strings.TrimSpace(displayName),
		Role:         userdomain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	res, err := s.establish(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionRegister, audit.ResourceAuth, "")
	return res, nil
}

// Login authenticates with username/password, creates a session, and returns
// the user plus a fresh token. Failures are uniformly ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Result, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.audit.LogEvent(ctx, 0, audit.ActionLoginFail, audit.ResourceAuth, "unknown username")
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.audit.LogEvent(ctx, user.ID, audit.ActionLoginFail, audit.ResourceAuth, "")
		return nil, ErrInvalidCredentials
	}
	res, err := s.establish(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionLogin, audit.ResourceAuth, "")
	return res, nil
}

// Me returns the current user by id from the credential store (fresh lookup,
// not stale claims). Returns ErrUnauthenticated if the user no longer exists.
func (s *Service) Me(ctx context.Context, userID int64) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// Refresh verifies the presented token and re-issues a fresh one. The new
// token is built from a fresh credential-store lookup rather than the
// embedded claims, so role and display-name changes propagate. Sliding
// window: each refresh starts a new full TTL.
func (s *Service) Refresh(ctx context.Context, tokenString string) (string, time.Time, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		s.log.Debug(ctx, "refresh rejected", "reason", err)
		return "", time.Time{}, security.ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		return "", time.Time{}, err
	}
	if user == nil {
		return "", time.Time{}, security.ErrInvalidToken
	}
	return s.tokens.Issue(user.ID, user.Username, user.DisplayName, user.Role, user.CreatedAt)
}

// Logout invalidates the session. Idempotent: succeeds when no session
// exists, when the id is empty, and when called repeatedly.
func (s *Service) Logout(ctx context.Context, sessionID string, userID int64) error {
	if sessionID != "" {
		if err := s.sessions.Invalidate(ctx, sessionID); err != nil {
			// Logout must not fail the caller; the cookie is cleared regardless.
			s.log.Warn(ctx, "session invalidation failed", "session_id", sessionID, "error", err)
		}
	}
	s.audit.LogEvent(ctx, userID, audit.ActionLogout, audit.ResourceSession, "")
	return nil
}

// establish issues a token and creates the session record for the user. The
// session stores both the primary identity snapshot and a recovery copy; the
// latter outlives loss of the primary marker.
func (s *Service) establish(ctx context.Context, user *userdomain.User) (*Result, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, user.DisplayName, user.Role, user.CreatedAt)
	if err != nil {
		return nil, err
	}
	snap := &sessiondomain.Snapshot{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}
	recovery := *snap
	now := time.Now().UTC()
	rec := &sessiondomain.Record{
		ID:            uuid.New().String(),
		Authenticated: true,
		Identity:      snap,
		Recovery:      &recovery,
		CreatedAt:     now,
		LastCheckedAt: now,
	}
	if err := s.sessions.Save(ctx, rec); err != nil {
		return nil, err
	}
	return &Result{User: user, Token: token, TokenExpiresAt: expiresAt, Session: rec}, nil
}
