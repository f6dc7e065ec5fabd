package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFail(t *testing.T) {
	rr := httptest.NewRecorder()
	Fail(rr, http.StatusForbidden, "forbidden", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":false,"error":"forbidden"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	Fail(rr, http.StatusBadRequest, "validation", map[string]string{"email": "required"})
	assert.JSONEq(t, `{"ok":false,"error":"validation","details":{"email":"required"}}`, rr.Body.String())
}

func TestJSONUnencodablePayload(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusOK, map[string]any{"bad": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"ok":false,"error":"internal_error"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	JSON(rr, http.StatusOK, nil)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))
}

func TestWantsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "application/json")
	assert.True(t, WantsJSON(r))
	r.Header.Set("Accept", "text/html,application/json")
	assert.False(t, WantsJSON(r))
}

func TestFlashRoundTrip(t *testing.T) {
	rr := httptest.NewRecorder()
	SetFlash(rr, Flash{Kind: "success", Message: "Status updated"}, Flash{Kind: "warning", Message: "Invalid amount: a.b"})
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	out := PopFlash(httptest.NewRecorder(), req)
	require.Len(t, out, 2)
	assert.Equal(t, "success", out[0].Kind)
	assert.Equal(t, "Invalid amount: a.b", out[1].Message)
}
