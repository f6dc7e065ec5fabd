package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/services"
)

// VerifyHandler answers public report verification lookups.
type VerifyHandler struct {
	Base
	verifier *services.VerificationService
}

func NewVerifyHandler(base Base, verifier *services.VerificationService) *VerifyHandler {
	return &VerifyHandler{Base: base, verifier: verifier}
}

// VerifyReport always answers JSON. A malformed code is a 400.
func (h *VerifyHandler) VerifyReport(w http.ResponseWriter, r *http.Request) {
	res, err := h.verifier.Verify(r.Context(), r.URL.Query().Get("code"))
	if errors.Is(err, services.ErrInvalidCodeFormat) {
		httpx.Fail(w, http.StatusBadRequest, "Invalid code format", nil)
		return
	}
	if err != nil {
		h.logger().Error("verify lookup failed", zap.Error(err))
		httpx.Fail(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Page is the HTML form around the same lookup.
func (h *VerifyHandler) Page(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	data := map[string]any{"Code": code}
	if code != "" {
		res, err := h.verifier.Verify(r.Context(), code)
		switch {
		case err == nil:
			data["Result"] = &res
		case errors.Is(err, services.ErrInvalidCodeFormat):
			data["Error"] = "invalid_code_format"
		default:
			h.writeError(w, r, err, "")
			return
		}
	}
	h.render(w, r, http.StatusOK, "verify.html", data)
}
