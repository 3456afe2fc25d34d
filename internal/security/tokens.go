package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad
	// signature, or fails issuer/audience checks. Callers surface it uniformly
	// as unauthenticated; the distinguishing reason is for internal logs only.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for an otherwise well-formed token past its
	// expiry. Distinguished from ErrInvalidToken so the refresh flow can tell
	// "sign in again" from "tampered"; externally both map to 401.
	ErrTokenExpired = errors.New("token expired")
)

// Claims holds the identity fields embedded in a signed token. The token is
// self-contained: verification never needs a store round-trip.
type Claims struct {
	jwt.RegisteredClaims
	Username      string `json:"username"`
	DisplayName   string `json:"display_name,omitempty"`
	Role          string `json:"role"`
	UserCreatedAt int64  `json:"user_created_at,omitempty"`
}

// UserID returns the numeric user id from the subject claim, or 0 if unset/malformed.
func (c *Claims) UserID() int64 {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// TokenProvider issues and verifies HS256-signed identity tokens.
// issuer and audience are set on issue and checked on verify.
type TokenProvider struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secret.
func NewTokenProvider(secret []byte, issuer, audience string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{secret: secret, issuer: issuer, audience: audience, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (p *TokenProvider) TTL() time.Duration { return p.ttl }

// Issue mints an identity token for the given user fields.
// Returns the signed token and its expiry.
func (p *TokenProvider) Issue(userID int64, username, displayName, role string, userCreatedAt time.Time) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username:      username,
		DisplayName:   displayName,
		Role:          role,
		UserCreatedAt: userCreatedAt.UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := t.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses and validates the token (signature, exp, iss, aud).
// Returns ErrTokenExpired for expired tokens and ErrInvalidToken for every
// other failure; it never panics or leaks parser detail to callers.
func (p *TokenProvider) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return nil, ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrInvalidToken
	}
	if claims.UserID() == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
