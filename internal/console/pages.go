package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/logger"
	"github.com/phillip-england/transitops/internal/middleware"
	"go.uber.org/zap"
)

const (
	themeLight = "light"
	themeDark  = "dark"
)

type pageData struct {
	Title     string
	Nav       string
	Theme     string
	CSRFField template.HTML
	ReturnTo  string
	Error     string
	Message   string
	// Download is a same-origin URL the page opens in a new tab on load.
	Download string

	Email  string
	Ride   *rideFormView
	Search *searchView
}

var templateFuncs = template.FuncMap{
	"money": func(value float64) string { return fmt.Sprintf("%.2f", value) },
}

func (s *server) newPage(r *http.Request, title, nav string) pageData {
	return pageData{
		Title:     title,
		Nav:       nav,
		Theme:     themeFrom(r),
		CSRFField: csrf.TemplateField(r),
		ReturnTo:  r.URL.RequestURI(),
	}
}

func (s *server) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data pageData) {
	// The browser went away while the backend answered; nothing to render.
	if r.Context().Err() != nil {
		return
	}
	if err := renderHTMLTemplate(w, tmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		logger.Error("template render failed",
			zap.String("template", tmpl.Name()),
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
}

func renderHTMLTemplate(w http.ResponseWriter, tmpl *template.Template, data pageData) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, err := w.Write(buf.Bytes())
	return err
}

// backendSession binds the backend client to the cookies the browser holds
// for the backend. The console's own cookies are not forwarded.
func (s *server) backendSession(r *http.Request) *backend.Session {
	return s.client.Session(backendCookies(r))
}

func backendCookies(r *http.Request) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range r.Cookies() {
		if isConsoleCookie(c.Name) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isConsoleCookie(name string) bool {
	return name == themeCookieName || name == csrfCookieName
}

func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.gate.Check(r.Context(), s.backendSession(r)) {
			if r.Context().Err() != nil {
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func themeFrom(r *http.Request) string {
	c, err := r.Cookie(themeCookieName)
	if err == nil && c.Value == themeDark {
		return themeDark
	}
	return themeLight
}

func (s *server) toggleTheme(w http.ResponseWriter, r *http.Request) {
	next := themeDark
	if themeFrom(r) == themeDark {
		next = themeLight
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookieName,
		Value:    next,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, localPath(r.FormValue("return_to"), "/rides/new"), http.StatusSeeOther)
}

// localPath accepts only same-origin absolute paths.
func localPath(raw, fallback string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return raw
}

// withFlash appends the message/error query parameters a redirected page
// shows once.
func withFlash(path string, values url.Values) string {
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

func assetFile(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := templatesFS.ReadFile(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "private, max-age=300")
		_, _ = w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
