package handlers

import (
	"net/http"

	"github.com/diewo77/labdesk/internal/catalog"
	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/services"
)

// PageHandler serves the home page, the dashboard and the public rate card.
type PageHandler struct {
	Base
	requests *services.RequestService
	accounts *services.AccountService
	catalog  *catalog.Catalog
}

func NewPageHandler(base Base, requests *services.RequestService, accounts *services.AccountService, cat *catalog.Catalog) *PageHandler {
	return &PageHandler{Base: base, requests: requests, accounts: accounts, catalog: cat}
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.render(w, r, http.StatusNotFound, "error.html", map[string]any{"Status": http.StatusNotFound, "Code": "not_found"})
		return
	}
	h.render(w, r, http.StatusOK, "home.html", nil)
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	d, err := h.requests.Dashboard(r.Context(), actor)
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
		httpx.JSON(w, http.StatusOK, map[string]any{"dashboard": d, "profile": profile})
		return
	}
	h.render(w, r, http.StatusOK, "dashboard.html", map[string]any{"Dashboard": d, "Profile": profile})
}

// Tests lists the published test rates.
func (h *PageHandler) Tests(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, h.catalog)
		return
	}
	h.render(w, r, http.StatusOK, "tests.html", map[string]any{"Catalog": h.catalog})
}
