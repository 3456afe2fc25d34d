// Package handler exposes the auth service over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"watchtrack/backend/internal/auth"
	"watchtrack/backend/internal/httpx"
	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/security"
	"watchtrack/backend/internal/server/middleware"
	userdomain "watchtrack/backend/internal/user/domain"
	userrepo "watchtrack/backend/internal/user/repository"
)

// Handler serves the /auth endpoints.
type Handler struct {
	service      *auth.Service
	cookies      *security.CookieCodec
	cookieName   string
	cookieMaxAge time.Duration
	secureCookie bool
	log          logging.Logger
}

// New returns an auth Handler. cookieMaxAge should match the server-side
// session TTL; secureCookie should be true everywhere except local dev.
func New(service *auth.Service, cookies *security.CookieCodec, cookieName string, cookieMaxAge time.Duration, secureCookie bool, log logging.Logger) *Handler {
	return &Handler{
		service:      service,
		cookies:      cookies,
		cookieName:   cookieName,
		cookieMaxAge: cookieMaxAge,
		secureCookie: secureCookie,
		log:          log,
	}
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Token string `json:"token"`
}

type userResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type authResponse struct {
	User           userResponse `json:"user"`
	Token          string       `json:"token"`
	TokenExpiresAt time.Time    `json:"token_expires_at"`
}

type refreshResponse struct {
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.service.Register(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.setSessionCookie(w, res.Session.ID)
	httpx.WriteJSON(w, http.StatusCreated, toAuthResponse(res))
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.setSessionCookie(w, res.Session.ID)
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

// Refresh handles POST /auth/refresh. The token to refresh comes from the
// Authorization header, or a JSON body for clients that cannot set headers.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		var req refreshRequest
		if err := httpx.DecodeJSON(r, &req); err == nil {
			tokenString = req.Token
		}
	}
	if tokenString == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	token, expiresAt, err := h.service.Refresh(r.Context(), tokenString)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{Token: token, TokenExpiresAt: expiresAt})
}

// Logout handles POST /auth/logout. Always succeeds and always clears the
// cookie, whether or not a live session existed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if c, err := r.Cookie(h.cookieName); err == nil {
		if id, derr := h.cookies.Decode(c.Value); derr == nil {
			sessionID = id
		}
	}
	var userID int64
	if identity, ok := middleware.GetIdentity(r.Context()); ok {
		userID = identity.UserID
	}
	_ = h.service.Logout(r.Context(), sessionID, userID)
	h.clearSessionCookie(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /auth/me. Requires an authenticated identity; the response
// comes from a fresh credential-store lookup.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	user, err := h.service.Me(r.Context(), identity.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    h.cookies.Encode(sessionID),
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeServiceError maps service sentinels to HTTP statuses. Unknown errors
// become a generic 500; detail stays in the logs.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, userrepo.ErrDuplicateUsername):
		httpx.WriteError(w, http.StatusConflict, userrepo.ErrDuplicateUsername.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, security.ErrInvalidToken), errors.Is(err, security.ErrTokenExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
	default:
		h.log.Error(r.Context(), "auth handler error", "path", r.URL.Path, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) > len(prefix) && (v[:len(prefix)] == prefix || v[:len(prefix)] == "bearer ") {
		return v[len(prefix):]
	}
	return ""
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}

func toAuthResponse(res *auth.Result) authResponse {
	return authResponse{
		User:           toUserResponse(res.User),
		Token:          res.Token,
		TokenExpiresAt: res.TokenExpiresAt,
	}
}
