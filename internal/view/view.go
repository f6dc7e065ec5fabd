// Package view renders the HTML pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/labdesk/internal/auth"
	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/i18n"
	"github.com/diewo77/labdesk/internal/models"
)

//go:embed templates
var embedded embed.FS

const layoutName = "layout.html"

var partials = []string{
	"partials/errors-alert.html",
	"partials/status-badge.html",
	"partials/status-form.html",
}

// Renderer parses page templates once and executes them with request bound funcs.
type Renderer struct {
	files fs.FS
	dev   bool

	// Resolvers set by the host app so templates can ask about the current user.
	Lang    func(*http.Request) string
	Can     func(r *http.Request, resource, action string) bool
	IsAdmin func(*http.Request) bool

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// New returns a renderer over the embedded templates. In dev mode templates
// are re-parsed on every render.
func New(dev bool) *Renderer {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return NewFromFS(sub, dev)
}

// NewFromFS renders templates from files, which must hold layout.html.
func NewFromFS(files fs.FS, dev bool) *Renderer {
	return &Renderer{
		files: files,
		dev:   dev,
		Lang:  func(r *http.Request) string { return i18n.DetectLanguage(r.Header.Get("Accept-Language")) },
		cache: map[string]*template.Template{},
	}
}

// Funcs returns the template helpers bound to r.
func (v *Renderer) Funcs(r *http.Request) template.FuncMap {
	lang := i18n.DefaultLang
	if r != nil && v.Lang != nil {
		lang = v.Lang(r)
	}
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"lang": func() string { return lang },
		"can": func(resource, action string) bool {
			if r == nil || v.Can == nil {
				return false
			}
			return v.Can(r, resource, action)
		},
		"isAdmin": func() bool {
			if r == nil || v.IsAdmin == nil {
				return false
			}
			return v.IsAdmin(r)
		},
		"year":          func() int { return time.Now().Year() },
		"statusLabel":   func(s models.Status) string { return s.Label() },
		"statusChoices": models.StatusChoices,
		"date": func(t any) string {
			switch d := t.(type) {
			case time.Time:
				return d.Format("02/01/2006")
			case *time.Time:
				if d != nil {
					return d.Format("02/01/2006")
				}
			}
			return ""
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"amount": func(a *float64) string {
			if a == nil {
				return ""
			}
			return fmt.Sprintf("%.2f", *a)
		},
		// dict creates a map from key-value pairs for passing to sub-templates.
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

func (v *Renderer) parse(name string) (*template.Template, error) {
	if !v.dev {
		v.mu.RLock()
		t, ok := v.cache[name]
		v.mu.RUnlock()
		if ok {
			return t, nil
		}
	}
	page, err := fs.ReadFile(v.files, name)
	if err != nil {
		return nil, err
	}
	var t *template.Template
	if bytes.Contains(bytes.ToLower(page), []byte("<!doctype")) {
		// full document, no layout
		t, err = template.New(name).Funcs(v.Funcs(nil)).Parse(string(page))
	} else {
		files := append([]string{layoutName, name}, v.existing(partials)...)
		t, err = template.New(layoutName).Funcs(v.Funcs(nil)).ParseFS(v.files, files...)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if !v.dev {
		v.mu.Lock()
		v.cache[name] = t
		v.mu.Unlock()
	}
	return t, nil
}

func (v *Renderer) existing(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, err := fs.Stat(v.files, n); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// Render executes the page name with data. Year, IsLoggedIn, Flashes and
// Title are injected when missing.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return v.RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit HTTP status.
func (v *Renderer) RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	base, err := v.parse(name)
	if err != nil {
		return err
	}
	t, err := base.Clone()
	if err != nil {
		return err
	}
	t.Funcs(v.Funcs(r))

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Year"]; !ok {
		data["Year"] = time.Now().Year()
	}
	if _, ok := data["IsLoggedIn"]; !ok {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	if _, ok := data["Flashes"]; !ok {
		data["Flashes"] = httpx.PopFlash(w, r)
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = strings.TrimSuffix(name, ".html")
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
