package policy

import (
	"github.com/diewo77/labdesk/internal/gate"
	"github.com/diewo77/labdesk/internal/models"
)

// Role names.
const (
	RoleClient    = "client"
	RoleStaff     = "staff"
	RoleSuperuser = "superuser"
)

// Resource types used in permissions. Both request families share the
// "request" resource because their access rules are identical.
const (
	ResourceRequest = "request"
	ResourceLabItem = "lab_item"
	ResourceProfile = "profile"
	ResourceUser    = "user"
	ResourceExport  = "export"
)

var registry = gate.NewRegistry(
	gate.NewStaticRole(RoleClient,
		gate.NewPermission(ResourceRequest, gate.ActionList),
		gate.NewPermission(ResourceRequest, gate.ActionView),
		gate.NewPermission(ResourceRequest, gate.ActionCreate),
		gate.NewPermission(ResourceRequest, gate.ActionUploadReceipt),
		gate.NewPermission(ResourceProfile, gate.ActionView),
		gate.NewPermission(ResourceProfile, gate.ActionUpdate),
	),
	gate.NewStaticRole(RoleStaff,
		gate.NewPermission(ResourceRequest, gate.WildcardAll),
		gate.NewPermission(ResourceLabItem, gate.WildcardAll),
		gate.NewPermission(ResourceExport, gate.WildcardAll),
		gate.NewPermission(ResourceProfile, gate.ActionView),
		gate.NewPermission(ResourceProfile, gate.ActionUpdate),
	),
	gate.NewStaticRole(RoleSuperuser, gate.PermissionAll),
)

// Registry returns the built-in roles.
func Registry() *gate.Registry { return registry }

// RoleNameFor maps account flags to a role name. Superuser wins over staff.
func RoleNameFor(u *models.User) string {
	switch {
	case u.IsSuperuser:
		return RoleSuperuser
	case u.IsStaff:
		return RoleStaff
	default:
		return RoleClient
	}
}

// RoleFor returns the role of u.
func RoleFor(u *models.User) gate.Role {
	role, _ := registry.Lookup(RoleNameFor(u))
	return role
}
