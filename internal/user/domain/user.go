package domain

import (
	"errors"
	"time"
)

// User is the core user entity. PasswordHash is never serialized outward;
// handlers must convert to a response shape that omits it.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	DisplayName  string
	Role         string
	CreatedAt    time.Time
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
