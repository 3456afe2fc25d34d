// Package audit records authentication events for later inspection.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"watchtrack/backend/internal/audit/domain"
	auditrepo "watchtrack/backend/internal/audit/repository"
	"watchtrack/backend/internal/logging"
)

// Event actions recorded by the auth subsystem.
const (
	ActionRegister  = "register"
	ActionLogin     = "login"
	ActionLoginFail = "login_failure"
	ActionLogout    = "logout"
	ActionRecovered = "recovered_resolution"
	ResourceAuth    = "auth"
	ResourceSession = "session"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID int64, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         logging.Logger
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log logging.Logger) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID int64, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Error(ctx, "audit: failed to log event", "action", action, "resource", resource, "error", err)
	}
}

// Nop returns an AuditLogger that records nothing. Useful in tests.
func Nop() AuditLogger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) LogEvent(context.Context, int64, string, string, string) {}
