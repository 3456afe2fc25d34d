// Package guard decides whether a resolved identity may act on a resource.
// The rule set is a small embedded Rego policy evaluated with OPA so the
// ownership rules live in one auditable place.
package guard

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"watchtrack/backend/internal/auth"
)

const policyModule = `package watchtrack.authz

default allow = false

allow if {
	input.subject.id == input.resource.owner_id
}

allow if {
	input.subject.role == "admin"
	input.operation.admin_scoped
}
`

// Reason explains a denial so handlers can map it to the right status code.
type Reason string

const (
	// ReasonUnauthenticated means no identity was resolved; maps to 401.
	ReasonUnauthenticated Reason = "unauthenticated"
	// ReasonNotOwner means the identity does not own the resource and is not
	// acting through an admin-scoped operation; maps to 403.
	ReasonNotOwner Reason = "not_owner"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Operation names the action being authorized. AdminScoped marks routes where
// role=admin may act on another user's resource.
type Operation struct {
	Name        string
	AdminScoped bool
}

// Engine evaluates the ownership policy. Compile once at startup; evaluation
// is cheap and stateless per call.
type Engine struct {
	compiler *ast.Compiler
}

// NewEngine compiles the embedded policy.
func NewEngine() (*Engine, error) {
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": policyModule})
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	return &Engine{compiler: compiler}, nil
}

// Authorize checks whether identity may perform op on a resource owned by
// ownerID. A nil identity is always denied with ReasonUnauthenticated.
// Evaluation errors deny (fail closed).
func (e *Engine) Authorize(ctx context.Context, identity *auth.Identity, ownerID int64, op Operation) Decision {
	if identity == nil || identity.UserID == 0 {
		return Decision{Allowed: false, Reason: ReasonUnauthenticated}
	}
	input := map[string]interface{}{
		"subject": map[string]interface{}{
			"id":   identity.UserID,
			"role": identity.Role,
		},
		"resource": map[string]interface{}{
			"owner_id": ownerID,
		},
		"operation": map[string]interface{}{
			"name":         op.Name,
			"admin_scoped": op.AdminScoped,
		},
	}
	q := rego.New(
		rego.Query("data.watchtrack.authz.allow"),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{Allowed: false, Reason: ReasonNotOwner}
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok || !allowed {
		return Decision{Allowed: false, Reason: ReasonNotOwner}
	}
	return Decision{Allowed: true}
}
