package policy

import (
	"context"

	"github.com/diewo77/labdesk/internal/gate"
)

// Ownable is implemented by models that have an owning user.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy allows users to act on resources they own.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

// Can returns true for list/create checks (nil resource) and for owned
// resources. Resources that are not Ownable are denied.
func (p *OwnershipPolicy) Can(_ context.Context, userID uint, _ gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == userID
}

// StaffBypassPolicy lets privileged users through and defers to inner otherwise.
type StaffBypassPolicy struct {
	inner        gate.Policy[uint]
	isPrivileged func(ctx context.Context, userID uint) bool
}

func NewStaffBypassPolicy(inner gate.Policy[uint], isPrivileged func(ctx context.Context, userID uint) bool) *StaffBypassPolicy {
	return &StaffBypassPolicy{inner: inner, isPrivileged: isPrivileged}
}

func (p *StaffBypassPolicy) Can(ctx context.Context, userID uint, action gate.Action, resource any) bool {
	if p.isPrivileged(ctx, userID) {
		return true
	}
	return p.inner.Can(ctx, userID, action, resource)
}

// requestRule is the record rule for both request families: the owner, or a
// privileged user for any record.
func requestRule(isPrivileged func(ctx context.Context, userID uint) bool) gate.Policy[uint] {
	return NewStaffBypassPolicy(NewOwnershipPolicy(), isPrivileged)
}

// ownedBy adapts a bare owner id to Ownable.
type ownedBy uint

func (o ownedBy) GetUserID() uint { return uint(o) }
