package middleware

import (
	"context"

	"watchtrack/backend/internal/auth"
)

type contextKey struct{ name string }

var (
	resolutionKey = contextKey{"resolution"}
	clientIPKey   = contextKey{"client_ip"}
)

// WithResolution returns a context carrying the resolved identity.
// Handlers read it via GetIdentity or GetResolution.
func WithResolution(ctx context.Context, res *auth.Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey, res)
}

// GetResolution returns the full resolution (identity, method, session id)
// and true if set.
func GetResolution(ctx context.Context) (*auth.Resolution, bool) {
	v, ok := ctx.Value(resolutionKey).(*auth.Resolution)
	return v, ok
}

// GetIdentity returns the resolved identity and true if set; otherwise nil, false.
func GetIdentity(ctx context.Context) (*auth.Identity, bool) {
	res, ok := GetResolution(ctx)
	if !ok {
		return nil, false
	}
	return &res.Identity, true
}

// WithClientIP returns a context carrying the client IP for audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the client IP from context, or "" if unset.
func GetClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
