package domain

import "time"

// AuditLog represents an audit event. UserID is 0 for events with no resolved
// user (e.g. login_failure for an unknown username).
type AuditLog struct {
	ID        string
	UserID    int64
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
