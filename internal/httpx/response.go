// Package httpx holds the response plumbing shared by handlers and
// middleware: JSON bodies, the failure envelope and flash cookies.
package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// Failure is the body of every JSON error. OK is always false so clients of
// the verification endpoint and the rest of the API check one field.
// Details carries field violations for 400 answers.
type Failure struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// encodeFailed is written when the payload itself cannot be encoded.
var encodeFailed = []byte(`{"ok":false,"error":"internal_error"}` + "\n")

// JSON writes payload with status. Encoding happens before the header is
// sent, so a bad payload still yields a well formed 500.
func JSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailed)
		return
	}
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Fail writes the failure envelope. code is a stable machine string such as
// "not_found" or "duplicate_code", or a display message on public endpoints.
func Fail(w http.ResponseWriter, status int, code string, details any) {
	JSON(w, status, Failure{Error: code, Details: details})
}

// WantsJSON reports whether the client prefers a JSON response over HTML.
func WantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
