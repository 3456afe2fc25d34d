package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidCookie is returned when a session cookie value is malformed or
// its signature does not verify. Callers treat the request as anonymous.
var ErrInvalidCookie = errors.New("invalid session cookie")

// CookieCodec signs and verifies session-cookie values. The cookie carries
// an opaque session id plus an HMAC-SHA256 signature ("id.sig"); the session
// state itself lives server-side.
type CookieCodec struct {
	secret []byte
}

// NewCookieCodec returns a CookieCodec signing with the given secret.
func NewCookieCodec(secret []byte) *CookieCodec {
	return &CookieCodec{secret: secret}
}

// Encode returns the signed cookie value for the session id.
func (c *CookieCodec) Encode(sessionID string) string {
	return sessionID + "." + c.sign(sessionID)
}

// Decode verifies the cookie value and returns the session id.
// Comparison is constant-time.
func (c *CookieCodec) Decode(value string) (string, error) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", ErrInvalidCookie
	}
	id, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(c.sign(id))) {
		return "", ErrInvalidCookie
	}
	return id, nil
}

func (c *CookieCodec) sign(id string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
