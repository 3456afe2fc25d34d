package guard

import (
	"context"
	"testing"

	"watchtrack/backend/internal/auth"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestAuthorize(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	alice := &auth.Identity{UserID: 1, Username: "alice", Role: "user"}
	bob := &auth.Identity{UserID: 2, Username: "bob", Role: "user"}
	admin := &auth.Identity{UserID: 3, Username: "root", Role: "admin"}

	mutate := Operation{Name: "watchlist.delete"}
	adminRead := Operation{Name: "admin.watchlist.read", AdminScoped: true}

	tests := []struct {
		name     string
		identity *auth.Identity
		ownerID  int64
		op       Operation
		allowed  bool
		reason   Reason
	}{
		{"owner may mutate", alice, 1, mutate, true, ""},
		{"non-owner denied", alice, 2, mutate, false, ReasonNotOwner},
		{"other direction denied", bob, 1, mutate, false, ReasonNotOwner},
		{"admin denied on non-admin route", admin, 1, mutate, false, ReasonNotOwner},
		{"admin allowed on admin route", admin, 1, adminRead, true, ""},
		{"plain user denied on admin route", alice, 2, adminRead, false, ReasonNotOwner},
		{"owner allowed on admin route", alice, 1, adminRead, true, ""},
		{"nil identity", nil, 1, mutate, false, ReasonUnauthenticated},
		{"zero identity", &auth.Identity{}, 0, mutate, false, ReasonUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Authorize(ctx, tt.identity, tt.ownerID, tt.op)
			if d.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v", d.Allowed, tt.allowed)
			}
			if !d.Allowed && d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestAuthorize_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	alice := &auth.Identity{UserID: 1, Role: "user"}

	for i := 0; i < 10; i++ {
		if d := e.Authorize(ctx, alice, 2, Operation{Name: "watchlist.read"}); d.Allowed {
			t.Fatal("non-owner allowed")
		}
		if d := e.Authorize(ctx, alice, 1, Operation{Name: "watchlist.read"}); !d.Allowed {
			t.Fatal("owner denied")
		}
	}
}
