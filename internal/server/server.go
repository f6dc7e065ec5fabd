// Package server wires services, handlers and middleware into the HTTP app.
package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/auth"
	"github.com/diewo77/labdesk/internal/blob"
	"github.com/diewo77/labdesk/internal/catalog"
	"github.com/diewo77/labdesk/internal/config"
	"github.com/diewo77/labdesk/internal/gate"
	"github.com/diewo77/labdesk/internal/handlers"
	"github.com/diewo77/labdesk/internal/kv"
	"github.com/diewo77/labdesk/internal/logging"
	"github.com/diewo77/labdesk/internal/metrics"
	"github.com/diewo77/labdesk/internal/policy"
	"github.com/diewo77/labdesk/internal/services"
	"github.com/diewo77/labdesk/internal/view"
)

// roleCacheTTL bounds how long a revoked staff flag can linger in another process.
const roleCacheTTL = 5 * time.Minute

// Deps are the collaborators the app is built from. KV may be nil.
type Deps struct {
	DB      *gorm.DB
	Config  *config.Config
	Log     *zap.Logger
	Store   blob.Store
	Catalog *catalog.Catalog
	KV      kv.KV
	Metrics *metrics.Metrics
}

// App is the main application handler.
type App struct {
	mux      *http.ServeMux
	handler  http.Handler
	log      *zap.Logger
	gate     *policy.AuthGate
	sessions *auth.Sessions
	metrics  *metrics.Metrics
	views    *view.Renderer
}

// New builds the app with all routes configured.
func New(d Deps) *App {
	log := logging.OrNop(d.Log)
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}
	authGate := policy.NewAuthGate(d.DB, d.KV, roleCacheTTL)
	sessions := auth.NewSessions(d.Config.App.SessionSecret, authGate.VerifyUser)

	views := view.New(d.Config.App.Dev)
	views.Can = func(r *http.Request, resource, action string) bool {
		return authGate.CanRole(r.Context(), gate.Action(action), resource)
	}
	views.IsAdmin = func(r *http.Request) bool {
		actor, ok := authGate.Actor(r.Context())
		return ok && actor.Role.HasPermission(gate.PermissionAll)
	}

	a := &App{
		mux:      http.NewServeMux(),
		log:      log,
		gate:     authGate,
		sessions: sessions,
		metrics:  m,
		views:    views,
	}
	a.routes(d)
	a.handler = a.recoverer(a.logRequests(sessions.Middleware(m.Middleware(a.mux))))
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Gate exposes the authorization gate, mainly for tests.
func (a *App) Gate() *policy.AuthGate { return a.gate }

// Sessions exposes the session manager, mainly for tests.
func (a *App) Sessions() *auth.Sessions { return a.sessions }

func (a *App) routes(d Deps) {
	base := handlers.Base{Views: a.views, Gate: a.gate, Log: a.log}

	requests := services.NewRequestService(d.DB, d.Store, d.Catalog, a.log)
	accounts := services.NewAccountService(d.DB, d.Store, a.log, a.gate)
	workflow := services.NewWorkflowService(d.DB, a.metrics)
	pricing := services.NewPricingService(d.DB, a.metrics)
	verifier := services.NewVerificationService(d.DB, a.metrics)

	authH := handlers.NewAuthHandler(base, accounts, a.sessions)
	pages := handlers.NewPageHandler(base, requests, accounts, d.Catalog)
	lab := handlers.NewLabHandler(base, requests, workflow, pricing)
	cons := handlers.NewConsultancyHandler(base, requests, workflow)
	verify := handlers.NewVerifyHandler(base, verifier)
	profile := handlers.NewProfileHandler(base, accounts)
	admin := handlers.NewAdminUsersHandler(base, accounts)
	exports := handlers.NewExportHandler(base, requests)
	files := handlers.NewFilesHandler(base, requests)

	// Public routes
	a.mux.HandleFunc("GET /{$}", pages.Home)
	a.mux.HandleFunc("GET /tests", pages.Tests)
	a.mux.HandleFunc("GET /verify-report", verify.VerifyReport)
	a.mux.HandleFunc("GET /verify", verify.Page)
	a.mux.HandleFunc("GET /healthz", handlers.Health(d.DB))
	a.mux.Handle("GET /metrics", a.metrics.Handler())
	a.mux.HandleFunc("GET /login", authH.LoginPage)
	a.mux.HandleFunc("POST /login", authH.Login)
	a.mux.HandleFunc("GET /signup", authH.SignupPage)
	a.mux.HandleFunc("POST /signup", authH.Signup)
	a.mux.HandleFunc("POST /logout", authH.Logout)

	// Authenticated routes
	a.mux.Handle("GET /dashboard", a.requireAuth(pages.Dashboard))
	a.mux.Handle("GET /dashboard/profile", a.requireAuth(profile.Show))
	a.mux.Handle("POST /dashboard/profile", a.requireAuth(profile.Update))
	a.mux.Handle("GET /files/{key...}", a.requireAuth(files.Get))

	// Request routes; record-level checks happen in the services
	a.mux.Handle("GET /dashboard/lab-tests",
		a.requirePermission(policy.ResourceRequest, gate.ActionList, lab.List))
	a.mux.Handle("POST /dashboard/lab-tests",
		a.requirePermission(policy.ResourceRequest, gate.ActionCreate, lab.Create))
	a.mux.Handle("GET /dashboard/lab-tests/{id}",
		a.requirePermission(policy.ResourceRequest, gate.ActionView, lab.Detail))
	a.mux.Handle("POST /dashboard/lab-tests/{id}/update-status",
		a.requirePermission(policy.ResourceRequest, gate.ActionSetStatus, lab.UpdateStatus))
	a.mux.Handle("POST /dashboard/lab-tests/{id}/upload-receipt",
		a.requirePermission(policy.ResourceRequest, gate.ActionUploadReceipt, lab.UploadReceipt))
	a.mux.Handle("POST /dashboard/lab-tests/item/{id}/update-price",
		a.requirePermission(policy.ResourceLabItem, gate.ActionSetPrice, lab.UpdateItemPrice))

	a.mux.Handle("GET /dashboard/consultancy",
		a.requirePermission(policy.ResourceRequest, gate.ActionList, cons.List))
	a.mux.Handle("POST /dashboard/consultancy",
		a.requirePermission(policy.ResourceRequest, gate.ActionCreate, cons.Create))
	a.mux.Handle("GET /dashboard/consultancy/{id}",
		a.requirePermission(policy.ResourceRequest, gate.ActionView, cons.Detail))
	a.mux.Handle("POST /dashboard/consultancy/{id}/update-status",
		a.requirePermission(policy.ResourceRequest, gate.ActionSetStatus, cons.UpdateStatus))
	a.mux.Handle("POST /dashboard/consultancy/{id}/upload-receipt",
		a.requirePermission(policy.ResourceRequest, gate.ActionUploadReceipt, cons.UploadReceipt))

	// Admin routes
	a.mux.Handle("GET /admin/users", a.requireSuperuser(admin.List))
	a.mux.Handle("POST /admin/users/{id}/staff", a.requireSuperuser(admin.SetStaff))
	a.mux.Handle("GET /admin/export/{family}",
		a.requirePermission(policy.ResourceExport, gate.ActionExport, exports.Export))
}

func (a *App) requireAuth(h http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(h)
}

func (a *App) requirePermission(resource string, action gate.Action, h http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(a.gate.RequirePermission(resource, action)(h))
}

func (a *App) requireSuperuser(h http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(a.gate.RequireSuperuser()(h))
}
