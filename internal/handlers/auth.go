package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/labdesk/internal/auth"
	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/services"
)

type AuthHandler struct {
	Base
	accounts *services.AccountService
	sessions *auth.Sessions
}

func NewAuthHandler(base Base, accounts *services.AccountService, sessions *auth.Sessions) *AuthHandler {
	return &AuthHandler{Base: base, accounts: accounts, sessions: sessions}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", map[string]any{"Next": r.URL.Query().Get("next")})
}

// Login accepts an email, phone number or username with a password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.writeError(w, r, services.ErrInvalidCredentials, "")
		return
	}
	login := r.FormValue("username")
	user, err := h.accounts.Authenticate(r.Context(), login, r.FormValue("password"))
	if errors.Is(err, services.ErrInvalidCredentials) && !httpx.WantsJSON(r) {
		h.render(w, r, http.StatusOK, "login.html", map[string]any{
			"Error": "invalid_credentials",
			"Login": login,
			"Next":  r.FormValue("next"),
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.sessions.Create(w, user.ID)
	h.logger().Info("user logged in", zap.Uint("user_id", user.ID))
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, user)
		return
	}
	http.Redirect(w, r, safeNext(r, "/dashboard"), http.StatusSeeOther)
}

func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup.html", map[string]any{
		"Form": services.SignupInput{AccountType: "organization"},
	})
}

// Signup registers a client account and logs it in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	in := services.SignupInput{
		Username:    r.FormValue("username"),
		Password1:   r.FormValue("password1"),
		Password2:   r.FormValue("password2"),
		FullName:    r.FormValue("full_name"),
		AccountType: r.FormValue("account_type"),
		OrgName:     r.FormValue("org_name"),
		RoleInOrg:   r.FormValue("role_in_org"),
		Phone:       r.FormValue("phone"),
		Address:     r.FormValue("address"),
	}
	user, err := h.accounts.Signup(r.Context(), in)
	if v, ok := services.AsViolations(err); ok && !httpx.WantsJSON(r) {
		in.Password1, in.Password2 = "", ""
		h.render(w, r, http.StatusOK, "signup.html", map[string]any{"Form": in, "Errors": v})
		return
	}
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.sessions.Create(w, user.ID)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, user)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	h.done(w, r, http.StatusOK, map[string]bool{"ok": true}, "logged_out", "/")
}
