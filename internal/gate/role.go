package gate

import (
	"context"
	"sort"
)

// Role is a named capability set. Callers ask a Role what it may do instead
// of inspecting user flags.
type Role interface {
	Name() string
	HasPermission(permission Permission) bool
	Permissions() []Permission
}

// RoleResolver resolves a user to their role.
type RoleResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Role, error)
}

// StaticRole is an in-memory role.
type StaticRole struct {
	name        string
	permissions map[Permission]bool
}

// NewStaticRole creates a role with the given permissions.
func NewStaticRole(name string, permissions ...Permission) *StaticRole {
	r := &StaticRole{name: name, permissions: make(map[Permission]bool, len(permissions))}
	for _, perm := range permissions {
		r.permissions[perm] = true
	}
	return r
}

func (r *StaticRole) Name() string { return r.name }

// Permissions returns the granted permissions, sorted.
func (r *StaticRole) Permissions() []Permission {
	perms := make([]Permission, 0, len(r.permissions))
	for perm := range r.permissions {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// HasPermission checks the requested permission with wildcard matching.
func (r *StaticRole) HasPermission(requested Permission) bool {
	for perm := range r.permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// Registry maps role names to roles.
type Registry struct {
	roles map[string]Role
}

// NewRegistry builds a registry from the given roles.
func NewRegistry(roles ...Role) *Registry {
	reg := &Registry{roles: make(map[string]Role, len(roles))}
	for _, r := range roles {
		reg.roles[r.Name()] = r
	}
	return reg
}

// Lookup returns the named role or ErrUnknownRole.
func (r *Registry) Lookup(name string) (Role, error) {
	role, ok := r.roles[name]
	if !ok {
		return nil, ErrUnknownRole
	}
	return role, nil
}

// StaticResolver is an in-memory resolver, used in tests.
type StaticResolver[U comparable] struct {
	roles map[U]Role
}

// NewStaticResolver creates an empty resolver.
func NewStaticResolver[U comparable]() *StaticResolver[U] {
	return &StaticResolver[U]{roles: make(map[U]Role)}
}

// Set assigns a role to a user.
func (r *StaticResolver[U]) Set(user U, role Role) {
	r.roles[user] = role
}

// Resolve returns the role for the given user, or nil when none is set.
func (r *StaticResolver[U]) Resolve(_ context.Context, user U) (Role, error) {
	return r.roles[user], nil
}
