package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/labdesk/internal/blob"
	"github.com/diewo77/labdesk/internal/catalog"
	"github.com/diewo77/labdesk/internal/config"
	"github.com/diewo77/labdesk/internal/export"
	"github.com/diewo77/labdesk/internal/kv"
	"github.com/diewo77/labdesk/internal/models"
)

type testEnv struct {
	app *App
	db  *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	cat, err := catalog.Default()
	require.NoError(t, err)
	app := New(Deps{
		DB:      db,
		Config:  &config.Config{App: config.AppConfig{SessionSecret: "test-secret"}},
		Store:   blob.NewMemory(),
		Catalog: cat,
		KV:      kv.NewMemory(),
	})
	return &testEnv{app: app, db: db}
}

func (e *testEnv) user(t *testing.T, username string, staff bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Username: username, Password: string(hash), IsActive: true, IsStaff: staff}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

// login returns the session cookie for username.
func (e *testEnv) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {username}, "password": {"Secret123"}}
	rec := e.do(t, http.MethodPost, "/login", form, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

// do sends a JSON-accepting request, form encoded when form is non-nil.
func (e *testEnv) do(t *testing.T, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Accept", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)
	return rec
}

func TestVerifyReportRejectsMalformedCode(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/verify-report?code=12ab", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"Invalid code format"}`, rec.Body.String())
}

func TestVerifyReportUnknownCode(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/verify-report?code=12345678", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":false}`, rec.Body.String())
}

func TestAnonymousDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/dashboard/lab-tests", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/lab-tests", nil)
	html := httptest.NewRecorder()
	env.app.ServeHTTP(html, req)
	assert.Equal(t, http.StatusSeeOther, html.Code)
	assert.Equal(t, "/login", html.Header().Get("Location"))
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice", false)
	rec := env.do(t, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"nope"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLabRequestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "client", false)
	env.user(t, "staff", true)
	clientCookie := env.login(t, "client")
	staffCookie := env.login(t, "staff")

	items := `[{"lab":"Geotechnical","subcategory":"Soil","name":"Sieve","price":100},{"lab":"Geotechnical","subcategory":"Soil","name":"Hydrometer","price":250}]`
	rec := env.do(t, http.MethodPost, "/dashboard/lab-tests", url.Values{
		"project_name": {"Bridge"},
		"items_json":   {items},
	}, clientCookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.LabTestRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Items, 2)
	detailPath := fmt.Sprintf("/dashboard/lab-tests/%d", created.ID)

	rec = env.do(t, http.MethodGet, detailPath, nil, clientCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, int64(350), detail.Total)

	// clients cannot move the workflow
	rec = env.do(t, http.MethodPost, detailPath+"/update-status", url.Values{"status": {"on-test"}}, clientCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, detailPath+"/update-status",
		url.Values{"status": {"report-delivered"}, "verification_code": {"1234"}}, staffCookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, detailPath+"/update-status",
		url.Values{"status": {"report-delivered"}, "verification_code": {"12345678"}}, staffCookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/verify-report?code=12345678", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verified map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verified))
	assert.Equal(t, true, verified["ok"])
	assert.Equal(t, "lab", verified["type"])
	assert.Equal(t, "Bridge", verified["project_name"])

	itemPath := fmt.Sprintf("/dashboard/lab-tests/item/%d/update-price", created.Items[0].ID)
	rec = env.do(t, http.MethodPost, itemPath, url.Values{"price": {"500"}}, clientCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodPost, itemPath, url.Values{"price": {"500"}}, staffCookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, detailPath, nil, staffCookie)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, int64(750), detail.Total)
}

func TestClientsOnlySeeTheirOwnRequests(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", false)
	env.user(t, "other", false)
	req := &models.LabTestRequest{UserID: owner.ID, ProjectName: "Private", Status: models.StatusRequested}
	require.NoError(t, env.db.Create(req).Error)

	otherCookie := env.login(t, "other")
	rec := env.do(t, http.MethodGet, fmt.Sprintf("/dashboard/lab-tests/%d", req.ID), nil, otherCookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/dashboard/lab-tests", nil, otherCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Zero(t, page.Total)
}

func TestBadPathIDIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "client", false)
	cookie := env.login(t, "client")
	rec := env.do(t, http.MethodGet, "/dashboard/consultancy/abc", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportRequiresStaff(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "client", false)
	env.user(t, "staff", true)

	rec := env.do(t, http.MethodGet, "/admin/export/lab.xlsx", nil, env.login(t, "client"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/export/consultancy.xlsx", nil, env.login(t, "staff"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "consultancy-requests-")

	rec = env.do(t, http.MethodGet, "/admin/export/invoices", nil, env.login(t, "staff"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUsersRequiresSuperuser(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "staff", true)
	rec := env.do(t, http.MethodGet, "/admin/users", nil, env.login(t, "staff"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `labdesk_http_requests_total{code="200",method="GET",route="GET /healthz"}`)
}

func TestRecovererAnswers500(t *testing.T) {
	env := newTestEnv(t)
	h := env.app.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
