package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"watchtrack/backend/internal/audit"
	"watchtrack/backend/internal/auth"
	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/security"
	"watchtrack/backend/internal/server/middleware"
	"watchtrack/backend/internal/session"
	sessionrepo "watchtrack/backend/internal/session/repository"
	userdomain "watchtrack/backend/internal/user/domain"
	userrepo "watchtrack/backend/internal/user/repository"
)

type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*userdomain.User)}
}

func (r *memUserRepo) GetByID(_ context.Context, id int64) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return userrepo.ErrDuplicateUsername
		}
	}
	r.nextID++
	u.ID = r.nextID
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

const cookieName = "watchtrack_session"

type env struct {
	handler *Handler
	server  http.Handler
	users   *memUserRepo
	cookies *security.CookieCodec
	tokens  *security.TokenProvider
}

// newEnv wires the handler behind the same middleware chain the router uses.
func newEnv(t *testing.T) *env {
	t.Helper()
	log := logging.Nop()
	users := newMemUserRepo()
	hasher := security.NewHasher(4)
	tokens := security.NewTokenProvider([]byte("token-secret"), "iss", "aud", time.Hour)
	sessions := session.NewManager(sessionrepo.NewMemoryRepository(), time.Hour, log)
	cookies := security.NewCookieCodec([]byte("cookie-secret"))
	svc := auth.NewService(users, hasher, tokens, sessions, audit.Nop(), log)
	resolver := auth.NewResolver(sessions, tokens, users, audit.Nop(), log)
	h := New(svc, cookies, cookieName, time.Hour, false, log)

	metrics := middleware.NewMetrics(prometheus.NewRegistry())
	resolve := middleware.Resolve(resolver, cookies, cookieName, metrics)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.Handle("GET /auth/me", middleware.RequireAuth(http.HandlerFunc(h.Me)))

	return &env{handler: h, server: resolve(mux), users: users, cookies: cookies, tokens: tokens}
}

func (e *env) do(t *testing.T, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func (e *env) register(t *testing.T, username, password string) (*httptest.ResponseRecorder, authResponse) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/register", registerRequest{
		Username: username, Password: password, DisplayName: username,
	}, nil)
	var res authResponse
	if w.Code == http.StatusCreated {
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode register response: %v", err)
		}
	}
	return w, res
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestRegisterCreatesUserAndSession(t *testing.T) {
	e := newEnv(t)
	w, res := e.register(t, "alice", "correct-horse")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if res.User.ID == 0 || res.User.Username != "alice" {
		t.Errorf("user = %+v", res.User)
	}
	if res.Token == "" {
		t.Error("no token in response")
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("response leaks password material: %s", w.Body.String())
	}
	c := sessionCookie(t, w)
	if c == nil {
		t.Fatal("no session cookie set")
	}
	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if _, err := e.cookies.Decode(c.Value); err != nil {
		t.Errorf("cookie value does not verify: %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	e := newEnv(t)
	if w, _ := e.register(t, "alice", "correct-horse"); w.Code != http.StatusCreated {
		t.Fatalf("first register: %d", w.Code)
	}
	w, _ := e.register(t, "alice", "another-pass")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestRegisterInvalidInput(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name string
		req  registerRequest
	}{
		{"short username", registerRequest{Username: "ab", Password: "long-enough"}},
		{"short password", registerRequest{Username: "alice", Password: "short"}},
		{"bad characters", registerRequest{Username: "al ice!", Password: "long-enough"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/auth/register", tc.req, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestLoginFailureIsGeneric(t *testing.T) {
	e := newEnv(t)
	if w, _ := e.register(t, "alice", "correct-horse"); w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}

	unknown := e.do(t, http.MethodPost, "/auth/login", loginRequest{Username: "nobody", Password: "whatever-123"}, nil)
	wrongPass := e.do(t, http.MethodPost, "/auth/login", loginRequest{Username: "alice", Password: "wrong-password"}, nil)

	if unknown.Code != http.StatusUnauthorized || wrongPass.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want 401 for both", unknown.Code, wrongPass.Code)
	}
	// Unknown username and wrong password must be indistinguishable.
	if unknown.Body.String() != wrongPass.Body.String() {
		t.Errorf("bodies differ: %q vs %q", unknown.Body.String(), wrongPass.Body.String())
	}
}

func TestLoginThenMe(t *testing.T) {
	e := newEnv(t)
	if w, _ := e.register(t, "alice", "correct-horse"); w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}
	login := e.do(t, http.MethodPost, "/auth/login", loginRequest{Username: "alice", Password: "correct-horse"}, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login: %d, body = %s", login.Code, login.Body.String())
	}
	c := sessionCookie(t, login)
	if c == nil {
		t.Fatal("no session cookie")
	}

	me := e.do(t, http.MethodGet, "/auth/me", nil, func(r *http.Request) {
		r.AddCookie(c)
	})
	if me.Code != http.StatusOK {
		t.Fatalf("me: %d, body = %s", me.Code, me.Body.String())
	}
	var u userResponse
	if err := json.Unmarshal(me.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("username = %q", u.Username)
	}
}

func TestMeWithoutSignals(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/auth/me", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestMeWithBearerOnly(t *testing.T) {
	e := newEnv(t)
	_, res := e.register(t, "alice", "correct-horse")
	w := e.do(t, http.MethodGet, "/auth/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+res.Token)
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestRefresh(t *testing.T) {
	e := newEnv(t)
	_, res := e.register(t, "alice", "correct-horse")

	w := e.do(t, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+res.Token)
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out refreshResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := e.tokens.Verify(out.Token)
	if err != nil {
		t.Fatalf("refreshed token does not verify: %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("username = %q", claims.Username)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/auth/refresh", refreshRequest{Token: "not.a.token"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w.Body.String() == "" || strings.Contains(strings.ToLower(w.Body.String()), "signature") {
		t.Errorf("body leaks verification detail: %s", w.Body.String())
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	e := newEnv(t)
	w, _ := e.register(t, "alice", "correct-horse")
	c := sessionCookie(t, w)
	if c == nil {
		t.Fatal("no session cookie")
	}

	for i := 0; i < 3; i++ {
		out := e.do(t, http.MethodPost, "/auth/logout", nil, func(r *http.Request) {
			r.AddCookie(c)
		})
		if out.Code != http.StatusOK {
			t.Fatalf("logout attempt %d: status = %d", i+1, out.Code)
		}
		cleared := sessionCookie(t, out)
		if cleared == nil || cleared.MaxAge >= 0 {
			t.Fatalf("logout attempt %d did not clear the cookie", i+1)
		}
	}

	// The session is gone; the cookie alone no longer authenticates.
	me := e.do(t, http.MethodGet, "/auth/me", nil, func(r *http.Request) {
		r.AddCookie(c)
	})
	if me.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d, want 401", me.Code)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/auth/logout", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
