package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidKind is returned for an unknown principal kind.
var ErrInvalidKind = errors.New("invalid principal kind")

// Kind separates system-level accounts from ordinary ones. It is orthogonal to Role.
type Kind string

// Known principal kinds.
const (
	KindAdmin Kind = "ADMIN"
	KindUser  Kind = "USER"
)

// kindGrants lists permissions a kind adds on top of the role table.
var kindGrants = map[Kind][]Permission{
	KindAdmin: {PermManageUsers},
	KindUser:  nil,
}

// ParseKind converts user input into a Kind. Matching is case-insensitive.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := kindGrants[kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
	return kind, nil
}

// Principal is the identity an operation is attempted on behalf of.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Kind Kind   `json:"kind"`
}

// Permissions returns the effective permission set: the role's permissions plus
// whatever the kind grants. An unknown role contributes nothing.
func (p Principal) Permissions() []Permission {
	perms := slices.Clone(rolePermissions[p.Role])
	for _, extra := range kindGrants[p.Kind] {
		if !slices.Contains(perms, extra) {
			perms = append(perms, extra)
		}
	}
	return perms
}

// Has reports whether the principal holds perm.
func (p Principal) Has(perm Permission) bool {
	return HasPermission(p.Role, perm) || slices.Contains(kindGrants[p.Kind], perm)
}

// HasAny reports whether the principal holds at least one of perms.
func (p Principal) HasAny(perms ...Permission) bool {
	for _, perm := range perms {
		if p.Has(perm) {
			return true
		}
	}
	return false
}

// HasAll reports whether the principal holds every one of perms.
func (p Principal) HasAll(perms ...Permission) bool {
	for _, perm := range perms {
		if !p.Has(perm) {
			return false
		}
	}
	return true
}

// CanAccessRoute applies the route table to the principal's effective permissions.
func (p Principal) CanAccessRoute(key string) bool {
	required, ok := routePermissions[key]
	if !ok {
		return true
	}
	return p.HasAny(required...)
}

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal placed by the authentication layer.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, false
	}
	return p, true
}
