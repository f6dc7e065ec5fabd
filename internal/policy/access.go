package policy

import (
	"context"

	"github.com/diewo77/labdesk/internal/gate"
	"github.com/diewo77/labdesk/internal/models"
)

// Actor is the authenticated subject of a service call.
type Actor struct {
	UserID uint
	Role   gate.Role
}

// ActorFor builds the actor for a loaded user.
func ActorFor(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: RoleFor(u)}
}

// Anonymous reports whether the actor carries no identity.
func (a Actor) Anonymous() bool {
	return a.UserID == 0 || a.Role == nil
}

func (a Actor) has(resource string, action gate.Action) bool {
	return !a.Anonymous() && a.Role.HasPermission(gate.NewPermission(resource, action))
}

// IsPrivileged is true for staff and superusers.
func (a Actor) IsPrivileged() bool {
	return a.has(ResourceRequest, gate.ActionListAll)
}

// owns runs the request record rule for a. Privilege comes from a's role,
// so no lookup happens.
func (a Actor) owns(action gate.Action, owner uint) bool {
	rule := requestRule(func(context.Context, uint) bool { return a.IsPrivileged() })
	return rule.Can(context.Background(), a.UserID, action, ownedBy(owner))
}

// Access answers every authorization question the services ask. It is a
// pure function of the actor's role and the record owner.
type Access struct{}

// CanView allows the owner and privileged actors.
func (Access) CanView(a Actor, owner uint) bool {
	return a.has(ResourceRequest, gate.ActionView) && a.owns(gate.ActionView, owner)
}

// CanCreate allows any actor holding request:create.
func (Access) CanCreate(a Actor) bool {
	return a.has(ResourceRequest, gate.ActionCreate)
}

// CanMutateStatus allows staff and superusers.
func (Access) CanMutateStatus(a Actor) bool {
	return a.has(ResourceRequest, gate.ActionSetStatus)
}

// CanUploadReceipt allows the owner, or a privileged actor for any record.
func (Access) CanUploadReceipt(a Actor, owner uint) bool {
	return a.has(ResourceRequest, gate.ActionUploadReceipt) && a.owns(gate.ActionUploadReceipt, owner)
}

// CanSetItemPrice allows staff and superusers.
func (Access) CanSetItemPrice(a Actor) bool {
	return a.has(ResourceLabItem, gate.ActionSetPrice)
}

// CanListAll allows staff and superusers to see every record.
func (Access) CanListAll(a Actor) bool {
	return a.IsPrivileged()
}

// CanManageUsers is superuser only.
func (Access) CanManageUsers(a Actor) bool {
	return a.has(ResourceUser, gate.ActionManage)
}

// CanExport allows staff and superusers.
func (Access) CanExport(a Actor) bool {
	return a.has(ResourceExport, gate.ActionExport)
}
