package domain

import "time"

// Snapshot is an identity embedded in a session record.
type Snapshot struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
}

// Record is the server-held session state referenced by the session cookie.
// It is persisted as an opaque blob in a key-value table with TTL expiry.
//
// Recovery holds a previously-seen identity retained even if the primary
// Identity marker is lost; the resolver uses it only as a last resort and
// marks such resolutions as recovered.
type Record struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	Identity      *Snapshot `json:"identity,omitempty"`
	Recovery      *Snapshot `json:"recovery,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

// Trusted reports whether the record carries at least one identity signal
// worth attempting to resolve.
func (r *Record) Trusted() bool {
	if r == nil {
		return false
	}
	return (r.Authenticated && r.Identity != nil) || r.Recovery != nil
}

// State describes the session lifecycle position after a load attempt.
type State int

const (
	// StateAnonymous means no session record exists for the id.
	StateAnonymous State = iota
	// StateAuthenticated means the record loaded and carries an identity.
	StateAuthenticated
	// StateStale means loading failed transiently; the session is retried on
	// the next request, not treated as a logout.
	StateStale
	// StateInvalidated means the record is gone for good: explicit logout or a
	// deterministic deserialization failure. Never silently resurrected.
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateStale:
		return "stale"
	case StateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}
