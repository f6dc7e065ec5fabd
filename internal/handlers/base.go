// Package handlers contains the HTTP handlers. Every handler answers JSON
// when the client asks for it and renders HTML otherwise.
package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/i18n"
	"github.com/diewo77/labdesk/internal/policy"
	"github.com/diewo77/labdesk/internal/services"
	"github.com/diewo77/labdesk/internal/view"
)

// maxFormMemory is kept in memory by ParseMultipartForm; larger parts spill to disk.
const maxFormMemory = 8 << 20

var errBadID = errors.New("invalid id")

// Base carries what every handler needs.
type Base struct {
	Views *view.Renderer
	Gate  *policy.AuthGate
	Log   *zap.Logger
}

func (b *Base) logger() *zap.Logger {
	if b.Log == nil {
		return zap.NewNop()
	}
	return b.Log
}

// actor resolves the caller. Anonymous callers get the zero Actor.
func (b *Base) actor(r *http.Request) policy.Actor {
	if b.Gate == nil {
		return policy.Actor{}
	}
	a, _ := b.Gate.Actor(r.Context())
	return a
}

func lang(r *http.Request) string {
	return i18n.DetectLanguage(r.Header.Get("Accept-Language"))
}

func (b *Base) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	if err := b.Views.RenderStatus(w, r, status, page, data); err != nil {
		b.logger().Error("render failed", zap.String("page", page), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound), errors.Is(err, errBadID):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidCode),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrInvalidCodeFormat):
		return http.StatusBadRequest
	}
	if _, ok := services.AsViolations(err); ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	if errors.Is(err, errBadID) {
		return "not_found"
	}
	return services.Code(err)
}

// writeError answers err as JSON, as a flash message plus redirect to back
// for recoverable HTML form errors, or as the error page.
func (b *Base) writeError(w http.ResponseWriter, r *http.Request, err error, back string) {
	b.writeErrorWith(w, r, err, back, nil)
}

// writeErrorWith is writeError with extra flash messages for the redirect.
func (b *Base) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, back string, extra []httpx.Flash) {
	status := statusFor(err)
	code := errorCode(err)
	if status == http.StatusInternalServerError {
		b.logger().Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	if httpx.WantsJSON(r) {
		var details any
		if v, ok := services.AsViolations(err); ok {
			details = v
		}
		httpx.Fail(w, status, code, details)
		return
	}
	if back != "" && (status == http.StatusBadRequest || status == http.StatusConflict) {
		flashes := append([]httpx.Flash{{Kind: "error", Message: i18n.T(lang(r), code)}}, extra...)
		httpx.SetFlash(w, flashes...)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	b.render(w, r, status, "error.html", map[string]any{"Status": status, "Code": code})
}

// done answers a successful mutation: payload as JSON, or a flash plus redirect.
func (b *Base) done(w http.ResponseWriter, r *http.Request, status int, payload any, message, back string) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, status, payload)
		return
	}
	if message != "" {
		httpx.SetFlash(w, httpx.Flash{Kind: "success", Message: i18n.T(lang(r), message)})
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func pathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 0)
	if err != nil || n == 0 {
		return 0, errBadID
	}
	return uint(n), nil
}

// safeNext returns the "next" form value when it is a local path.
func safeNext(r *http.Request, fallback string) string {
	next := r.FormValue("next")
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.Contains(next, "\\") {
		return next
	}
	return fallback
}

// formUpload returns the named multipart file, or nil when none was sent.
// The caller must call the returned close func.
func formUpload(r *http.Request, field string) (*services.Upload, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return uploadFrom(file, header), func() { file.Close() }, nil
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) *services.Upload {
	return &services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}
