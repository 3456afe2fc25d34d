package auth

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"watchtrack/backend/internal/audit"
	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/security"
	"watchtrack/backend/internal/session"
	sessiondomain "watchtrack/backend/internal/session/domain"
	sessionrepo "watchtrack/backend/internal/session/repository"
	userdomain "watchtrack/backend/internal/user/domain"
)

type resolverEnv struct {
	users    *memUserRepo
	sessRepo *sessionrepo.MemoryRepository
	sessions *session.Manager
	tokens   *security.TokenProvider
	audit    *recordingAudit
	resolver *Resolver
}

func newResolverEnv(t *testing.T) *resolverEnv {
	t.Helper()
	users := newMemUserRepo()
	sessRepo := sessionrepo.NewMemoryRepository()
	sessions := session.NewManager(sessRepo, time.Hour, logging.Nop())
	tokens := security.NewTokenProvider([]byte("test-secret"), "test-issuer", "test-audience", time.Hour)
	auditLog := &recordingAudit{}
	return &resolverEnv{
		users:    users,
		sessRepo: sessRepo,
		sessions: sessions,
		tokens:   tokens,
		audit:    auditLog,
		resolver: NewResolver(sessions, tokens, users, auditLog, logging.Nop()),
	}
}

func (e *resolverEnv) addUser(t *testing.T, username string) *userdomain.User {
	t.Helper()
	u := &userdomain.User{Username: username, PasswordHash: "x", Role: userdomain.RoleUser, CreatedAt: time.Now().UTC()}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u
}

func (e *resolverEnv) addSession(t *testing.T, id string, identity, recovery *sessiondomain.Snapshot, authenticated bool) {
	t.Helper()
	now := time.Now().UTC()
	rec := &sessiondomain.Record{
		ID:            id,
		Authenticated: authenticated,
		Identity:      identity,
		Recovery:      recovery,
		CreatedAt:     now,
		LastCheckedAt: now.Add(-time.Minute),
	}
	if err := e.sessRepo.Put(context.Background(), rec, time.Hour); err != nil {
		t.Fatalf("Put session: %v", err)
	}
}

func (e *resolverEnv) issueToken(t *testing.T, u *userdomain.User) string {
	t.Helper()
	token, _, err := e.tokens.Issue(u.ID, u.Username, u.DisplayName, u.Role, u.CreatedAt)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func snapshotFor(u *userdomain.User) *sessiondomain.Snapshot {
	return &sessiondomain.Snapshot{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func TestResolver_SessionWins(t *testing.T) {
	env := newResolverEnv(t)
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	env.addSession(t, "s1", snapshotFor(alice), snapshotFor(alice), true)
	bobToken := env.issueToken(t, bob)

	// Both a valid session (alice) and a valid token (bob): the documented
	// precedence picks the session, deterministically.
	for i := 0; i < 5; i++ {
		res, err := env.resolver.Resolve(context.Background(), Credentials{SessionID: "s1", Bearer: bobToken})
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if res.Method != MethodSession {
			t.Fatalf("method = %q, want session", res.Method)
		}
		if res.Identity.UserID != alice.ID {
			t.Fatalf("resolved user = %d, want alice (%d)", res.Identity.UserID, alice.ID)
		}
	}
}

func TestResolver_SessionTouchesLastChecked(t *testing.T) {
	env := newResolverEnv(t)
	alice := env.addUser(t, "alice")
	env.addSession(t, "s1", snapshotFor(alice), nil, true)

	before, _ := env.sessRepo.Get(context.Background(), "s1")
	if _, err := env.resolver.Resolve(context.Background(), Credentials{SessionID: "s1"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	after, _ := env.sessRepo.Get(context.Background(), "s1")
	if !after.LastCheckedAt.After(before.LastCheckedAt) {
		t.Error("LastCheckedAt not bumped by session resolution")
	}
}

func TestResolver_TokenFallback(t *testing.T) {
	env := newResolverEnv(t)
	alice := env.addUser(t, "alice")
	token := env.issueToken(t, alice)

	res, err := env.resolver.Resolve(context.Background(), Credentials{Bearer: token})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Method != MethodToken || res.Identity.UserID != alice.ID {
		t.Errorf("resolution = %+v", res)
	}
}

func TestResolver_RecoveryPath(t *testing.T) {
	env := newResolverEnv(t)
	alice := env.addUser(t, "alice")
	// Session lost its primary identity marker but kept the recovery snapshot.
	env.addSession(t, "s1", nil, snapshotFor(alice), false)

	res, err := env.resolver.Resolve(context.Background(), Credentials{SessionID: "s1", UserIDHint: "1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Method != MethodRecovered {
		t.Errorf("method = %q, want recovered", res.Method)
	}
	if res.Identity.UserID != alice.ID {
		t.Errorf("resolved user = %d, want %d", res.Identity.UserID, alice.ID)
	}
	if !env.audit.has(audit.ActionRecovered) {
		t.Error("recovered resolution not audited")
	}
}

func TestResolver_RecoveryUserGoneInvalidates(t *testing.T) {
	env := newResolverEnv(t)
	env.addSession(t, "s1", nil, &sessiondomain.Snapshot{UserID: 424242, Username: "ghost", Role: "user"}, false)

	_, err := env.resolver.Resolve(context.Background(), Credentials{SessionID: "s1"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
	// Orphaned session must be invalidated, not silently resurrected later.
	if rec, _ := env.sessRepo.Get(context.Background(), "s1"); rec != nil {
		t.Error("orphaned session still present")
	}
}

func TestResolver_NoSignals(t *testing.T) {
	env := newResolverEnv(t)
	_, err := env.resolver.Resolve(context.Background(), Credentials{})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("want ErrUnauthenticated, got %v", err)
	}
}

func TestResolver_HintIsNeverProof(t *testing.T) {
	env := newResolverEnv(t)
	env.addUser(t, "alice")

	// A client-supplied user id with no session and no token must not resolve.
	_, err := env.resolver.Resolve(context.Background(), Credentials{UserIDHint: "1"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("hint alone resolved: %v", err)
	}
}

type downRepo struct {
	*sessionrepo.MemoryRepository
}

type connRefused struct{}

func (connRefused) Error() string   { return "connection refused" }
func (connRefused) Timeout() bool   { return false }
func (connRefused) Temporary() bool { return true }

var _ net.Error = connRefused{}

func (r *downRepo) Get(ctx context.Context, id string) (*sessiondomain.Record, error) {
	return nil, connRefused{}
}

func TestResolver_StaleStoreFailsClosedButTokenStillWorks(t *testing.T) {
	env := newResolverEnv(t)
	alice := env.addUser(t, "alice")
	token := env.issueToken(t, alice)

	down := &downRepo{MemoryRepository: env.sessRepo}
	sessions := session.NewManager(down, time.Hour, logging.Nop())
	resolver := NewResolver(sessions, env.tokens, env.users, env.audit, logging.Nop())

	// Store outage with no other signal: unauthenticated, never an error leak.
	_, err := resolver.Resolve(context.Background(), Credentials{SessionID: "s1"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("want ErrUnauthenticated, got %v", err)
	}

	// A valid bearer token still resolves during the outage.
	res, err := resolver.Resolve(context.Background(), Credentials{SessionID: "s1", Bearer: token})
	if err != nil {
		t.Fatalf("Resolve with token during outage: %v", err)
	}
	if res.Method != MethodToken {
		t.Errorf("method = %q, want token", res.Method)
	}
}
