package httpx

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const flashCookieName = "flash"

// Flash is a one-shot message carried across a redirect.
type Flash struct {
	Kind    string // success|error|warning
	Message string
}

// SetFlash stores messages in a short lived cookie, read back by PopFlash.
func SetFlash(w http.ResponseWriter, flashes ...Flash) {
	if len(flashes) == 0 {
		return
	}
	parts := make([]string, 0, len(flashes))
	for _, f := range flashes {
		parts = append(parts, f.Kind+":"+base64.RawURLEncoding.EncodeToString([]byte(f.Message)))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    strings.Join(parts, "."),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// PopFlash returns pending messages and clears the cookie.
func PopFlash(w http.ResponseWriter, r *http.Request) []Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true})
	var out []Flash
	for _, part := range strings.Split(c.Value, ".") {
		kind, enc, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		msg, err := base64.RawURLEncoding.DecodeString(enc)
		if err != nil {
			continue
		}
		out = append(out, Flash{Kind: kind, Message: string(msg)})
	}
	return out
}
