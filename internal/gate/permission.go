package gate

import "strings"

// Permission represents an allowed action on a resource type.
// Format: "resource:action" (e.g. "lab_request:set-status").
type Permission string

// NewPermission creates a permission from resource type and action.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

const (
	WildcardAll              = "*"
	PermissionAll Permission = "*:*"
)

// Matches checks if this permission grants the requested one.
// "*:*" matches all, "lab_request:*" matches every lab_request action.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionAll || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && string(act) == WildcardAll
}
