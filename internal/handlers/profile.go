package handlers

import (
	"net/http"

	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/services"
	"github.com/diewo77/labdesk/internal/validation"
)

const profilePath = "/dashboard/profile"

type ProfileHandler struct {
	Base
	accounts *services.AccountService
}

func NewProfileHandler(base Base, accounts *services.AccountService) *ProfileHandler {
	return &ProfileHandler{Base: base, accounts: accounts}
}

func (h *ProfileHandler) show(w http.ResponseWriter, r *http.Request, profileErrs, passwordErrs validation.Violations) {
	actor := h.actor(r)
	user, err := h.accounts.Get(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	profile, err := h.accounts.EnsureProfile(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"email": user.Email, "profile": profile})
		return
	}
	h.render(w, r, http.StatusOK, "profile.html", map[string]any{
		"Email":          user.Email,
		"Profile":        profile,
		"ProfileErrors":  profileErrs,
		"PasswordErrors": passwordErrs,
	})
}

func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.show(w, r, nil, nil)
}

// Update handles both forms of the profile page, selected by the "form" field.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, profilePath)
		return
	}
	switch r.FormValue("form") {
	case "password":
		h.changePassword(w, r)
	default:
		h.updateProfile(w, r)
	}
}

func (h *ProfileHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	image, closeImage, err := formUpload(r, "profile_image")
	if err != nil {
		h.writeError(w, r, err, profilePath)
		return
	}
	defer closeImage()
	profile, err := h.accounts.UpdateProfile(r.Context(), h.actor(r), services.ProfileInput{
		Email:       r.FormValue("email"),
		FullName:    r.FormValue("full_name"),
		AccountType: r.FormValue("account_type"),
		OrgName:     r.FormValue("org_name"),
		RoleInOrg:   r.FormValue("role_in_org"),
		Phone:       r.FormValue("phone"),
		Address:     r.FormValue("address"),
		City:        r.FormValue("city"),
		Country:     r.FormValue("country"),
	}, image)
	if v, ok := services.AsViolations(err); ok && !httpx.WantsJSON(r) {
		h.show(w, r, v, nil)
		return
	}
	if err != nil {
		h.writeError(w, r, err, profilePath)
		return
	}
	h.done(w, r, http.StatusOK, profile, "profile_updated", profilePath+"?view=details")
}

func (h *ProfileHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	err := h.accounts.ChangePassword(r.Context(), h.actor(r),
		r.FormValue("old_password"), r.FormValue("new_password"), r.FormValue("confirm_password"))
	if v, ok := services.AsViolations(err); ok && !httpx.WantsJSON(r) {
		h.show(w, r, nil, v)
		return
	}
	if err != nil {
		h.writeError(w, r, err, profilePath)
		return
	}
	h.done(w, r, http.StatusOK, map[string]bool{"ok": true}, "password_changed", profilePath+"?view=password")
}
