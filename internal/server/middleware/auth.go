package middleware

import (
	"net"
	"net/http"
	"strings"

	"watchtrack/backend/internal/auth"
	"watchtrack/backend/internal/httpx"
	"watchtrack/backend/internal/security"
)

const bearerPrefix = "bearer "

// userIDHintHeader is a client-supplied hint. It never authenticates a
// request; the resolver records it for audit on recovery resolutions only.
const userIDHintHeader = "X-User-Id"

// Resolve returns middleware that extracts the ambient credentials (session
// cookie, bearer token, hint header), resolves the caller identity, and
// attaches it to the request context. Requests that fail resolution continue
// anonymously; pair with RequireAuth on protected routes.
func Resolve(resolver *auth.Resolver, cookies *security.CookieCodec, cookieName string, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClientIP(r.Context(), clientIP(r))

			creds := auth.Credentials{
				SessionID:  sessionIDFromCookie(r, cookies, cookieName),
				Bearer:     extractBearer(r.Header.Get("Authorization")),
				UserIDHint: r.Header.Get(userIDHintHeader),
			}

			res, err := resolver.Resolve(ctx, creds)
			if err == nil {
				ctx = WithResolution(ctx, res)
				metrics.ObserveResolution(string(res.Method))
			} else {
				metrics.ObserveResolution("unauthenticated")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that carry no resolved identity with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetIdentity(r.Context()); !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionIDFromCookie returns the verified session id from the request
// cookie, or "" when absent or the signature does not verify.
func sessionIDFromCookie(r *http.Request, cookies *security.CookieCodec, cookieName string) string {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	id, err := cookies.Decode(c.Value)
	if err != nil {
		return ""
	}
	return id
}

// extractBearer returns the Bearer token from the Authorization header value,
// or "" if missing or malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
