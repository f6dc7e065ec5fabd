// Package gate provides role based authorization with optional per-resource
// policies. It has no dependency on domain models.
package gate

import "context"

// HybridGate combines role permissions with resource-specific policies.
// Authorization flow:
//  1. Check if user is valid (non-zero)
//  2. Check if the user's role grants resource:action
//  3. If a resource policy exists and resource is provided, check it
type HybridGate[U comparable] struct {
	resolver RoleResolver[U]
	policies map[string]Policy[U]
}

// NewHybridGate creates a hybrid gate with the given role resolver.
func NewHybridGate[U comparable](resolver RoleResolver[U]) *HybridGate[U] {
	return &HybridGate[U]{
		resolver: resolver,
		policies: make(map[string]Policy[U]),
	}
}

// Register adds a resource-specific policy.
func (g *HybridGate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns ErrUnauthorized when any step denies.
func (g *HybridGate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	role, err := g.resolver.Resolve(ctx, user)
	if err != nil || role == nil {
		return ErrUnauthorized
	}
	if !role.HasPermission(NewPermission(resourceType, action)) {
		return ErrUnauthorized
	}
	if resource != nil {
		if policy, ok := g.policies[resourceType]; ok {
			if !policy.Can(ctx, user, action, resource) {
				return ErrUnauthorized
			}
		}
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *HybridGate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// CanRole checks only the role permission, without the resource policy.
// Useful for templates deciding whether to show a control.
func (g *HybridGate[U]) CanRole(ctx context.Context, user U, action Action, resourceType string) bool {
	var zero U
	if user == zero {
		return false
	}
	role, err := g.resolver.Resolve(ctx, user)
	if err != nil || role == nil {
		return false
	}
	return role.HasPermission(NewPermission(resourceType, action))
}

// RoleOf returns the resolved role, or nil for anonymous users.
func (g *HybridGate[U]) RoleOf(ctx context.Context, user U) Role {
	var zero U
	if user == zero {
		return nil
	}
	role, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return nil
	}
	return role
}
