package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/services"
	"github.com/diewo77/labdesk/internal/validation"
)

// AdminUsersHandler lets superusers review accounts and grant staff access.
type AdminUsersHandler struct {
	Base
	accounts *services.AccountService
}

func NewAdminUsersHandler(base Base, accounts *services.AccountService) *AdminUsersHandler {
	return &AdminUsersHandler{Base: base, accounts: accounts}
}

// List displays all users with their profiles.
func (h *AdminUsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context(), h.actor(r))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
		return
	}
	h.render(w, r, http.StatusOK, "admin_users.html", map[string]any{"Users": users})
}

// SetStaff handles POST with staff=1|0. Cached roles are dropped by the service.
func (h *AdminUsersHandler) SetStaff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, "/admin/users")
		return
	}
	staff, err := strconv.ParseBool(r.FormValue("staff"))
	if err != nil {
		h.writeError(w, r, &services.ValidationError{Violations: validation.Violations{"staff": "invalid_choice"}}, "/admin/users")
		return
	}
	user, err := h.accounts.SetStaff(r.Context(), h.actor(r), id, staff)
	if err != nil {
		h.writeError(w, r, err, "/admin/users")
		return
	}
	h.done(w, r, http.StatusOK, user, "staff_updated", "/admin/users")
}
