// Package auth carries the authenticated actor identity supplied by the
// external identity collaborator and the per-operation authorization policy.
package auth

import "context"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAgent    Role = "agent"
	RoleOperator Role = "operator"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAgent, RoleOperator:
		return true
	}
	return false
}

// Actor is the authenticated identity behind a request. The identity itself is
// trusted from the token; every authorization decision is made locally.
type Actor struct {
	ID   string
	Role Role
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
