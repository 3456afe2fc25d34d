// Package client implements the API client and session monitor used by
// frontends: it holds one authoritative identity, keeps a local fallback
// cache, and re-verifies silently when the server stops recognizing us.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrUnauthorized is returned when the server rejects our credentials and
	// a silent re-verification also failed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrServerUnavailable is returned when the server could not be reached
	// after retries.
	ErrServerUnavailable = errors.New("server unavailable")
)

// APIError is a terminal (non-retryable) error response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

const (
	requestTimeout = 15 * time.Second
	// One initial attempt plus two retries, matching the server-side budget
	// for transient failures.
	maxRetries   = 2
	retryBaseGap = 200 * time.Millisecond
)

// Identity is the authenticated user as the client sees it.
type Identity struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
}

// Client talks to the backend and tracks the signed-in identity. The session
// cookie rides in the jar; the bearer token is attached to every request.
// Safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	cache   *Cache

	mu       sync.Mutex
	token    string
	identity *Identity

	// onReauth is called once when the session is lost for good and the user
	// must sign in again. May be nil.
	onReauth func()
}

// Option configures a Client.
type Option func(*Client)

// WithCache attaches a local identity cache used as a fallback tier when the
// server is unreachable.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithReauthCallback sets the function invoked when the client gives up on
// the current session.
func WithReauthCallback(fn func()) Option {
	return func(c *Client) { c.onReauth = fn }
}

// WithHTTPClient overrides the underlying HTTP client. Used in tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New returns a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: requestTimeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpc.Jar == nil {
		c.httpc.Jar = jar
	}
	return c, nil
}

// Identity returns the current identity, or nil when signed out. The
// in-memory value is authoritative; the cache is only a fallback for
// restarts while the server is unreachable.
func (c *Client) Identity() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	copied := *c.identity
	return &copied
}

// Token returns the current bearer token, or "" when signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type authResponse struct {
	User           Identity  `json:"user"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

type refreshResponse struct {
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, username, password, displayName string) (*Identity, error) {
	return c.authenticate(ctx, "/auth/register", credentialsRequest{
		Username: username, Password: password, DisplayName: displayName,
	})
}

// Login signs in with username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*Identity, error) {
	return c.authenticate(ctx, "/auth/login", credentialsRequest{
		Username: username, Password: password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, req credentialsRequest) (*Identity, error) {
	var res authResponse
	status, msg, err := c.do(ctx, http.MethodPost, path, req, &res)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &APIError{Status: status, Message: msg}
	}
	c.setSession(ctx, &res.User, res.Token)
	return c.Identity(), nil
}

// Verify asks the server who we are. Used on startup and as the silent
// recheck after a 401. When the server is unreachable and a cached identity
// exists, it returns the cached identity so the UI can render in a degraded
// mode.
func (c *Client) Verify(ctx context.Context) (*Identity, error) {
	var identity Identity
	status, msg, err := c.do(ctx, http.MethodGet, "/auth/me", nil, &identity)
	if err != nil {
		if errors.Is(err, ErrServerUnavailable) && c.cache != nil {
			if cached, token, cerr := c.cache.Load(ctx); cerr == nil && cached != nil {
				c.mu.Lock()
				c.identity = cached
				if c.token == "" {
					c.token = token
				}
				c.mu.Unlock()
				return cached, nil
			}
		}
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.clearSession(ctx)
		return nil, ErrUnauthorized
	}
	if status != http.StatusOK {
		return nil, &APIError{Status: status, Message: msg}
	}
	c.mu.Lock()
	c.identity = &identity
	c.mu.Unlock()
	return c.Identity(), nil
}

// Refresh exchanges the current token for a fresh one, extending the sliding
// window.
func (c *Client) Refresh(ctx context.Context) error {
	token := c.Token()
	if token == "" {
		return ErrUnauthorized
	}
	var res refreshResponse
	status, msg, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &res)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if status != http.StatusOK {
		return &APIError{Status: status, Message: msg}
	}
	c.mu.Lock()
	c.token = res.Token
	identity := c.identity
	c.mu.Unlock()
	if c.cache != nil && identity != nil {
		_ = c.cache.Save(ctx, identity, res.Token)
	}
	return nil
}

// Logout signs out. Local state is cleared and the re-auth callback runs
// unconditionally: a failed server call never leaves the client believing it
// is signed in.
func (c *Client) Logout(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.giveUpSession(ctx)
	return err
}

// Call performs an authenticated API request. On a 401 it re-verifies once
// silently; if the session really is gone it clears local state, fires the
// re-auth callback, and returns ErrUnauthorized.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	status, msg, err := c.do(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return terminalError(status, msg)
	}

	if _, verr := c.Verify(ctx); verr != nil {
		c.giveUpSession(ctx)
		return ErrUnauthorized
	}
	// The session checked out; the 401 was for this call only.
	status, msg, err = c.do(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.giveUpSession(ctx)
		return ErrUnauthorized
	}
	return terminalError(status, msg)
}

func terminalError(status int, msg string) error {
	if status < http.StatusBadRequest {
		return nil
	}
	return &APIError{Status: status, Message: msg}
}

func (c *Client) giveUpSession(ctx context.Context) {
	c.clearSession(ctx)
	if c.onReauth != nil {
		c.onReauth()
	}
}

// do performs the request with bounded retries. Only transport errors and
// 5xx responses retry; any 4xx is a terminal answer from the server.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, string, error) {
	var status int
	var errMsg string
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(retryBaseGap))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, msg, err := c.doOnce(ctx, method, path, body, out, c.Token())
		if err != nil {
			return retry.RetryableError(err)
		}
		if s >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("server error %d", s))
		}
		status, errMsg = s, msg
		return nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	return status, errMsg, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any, token string) (int, string, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, "", err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, errBody.Error, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, "", fmt.Errorf("decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, "", nil
}

func (c *Client) setSession(ctx context.Context, identity *Identity, token string) {
	c.mu.Lock()
	c.identity = identity
	c.token = token
	c.mu.Unlock()
	if c.cache != nil {
		_ = c.cache.Save(ctx, identity, token)
	}
}

func (c *Client) clearSession(ctx context.Context) {
	c.mu.Lock()
	c.identity = nil
	c.token = ""
	c.mu.Unlock()
	if c.cache != nil {
		_ = c.cache.Clear(ctx)
	}
}
