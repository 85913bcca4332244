package handler

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/moodtracker/web"
)

const flashCookieName = "moodtracker_flash"

type flash struct {
	Kind    string
	Message string
}

// renderer executes the embedded page templates. Every page gets Flashes,
// Year and SignedIn in addition to its own data.
type renderer struct {
	templates *template.Template
	logger    *slog.Logger
}

func newRenderer(logger *slog.Logger) *renderer {
	return &renderer{
		templates: template.Must(template.ParseFS(web.Templates(), "*.html")),
		logger:    logger,
	}
}

func (rd *renderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	flashes := popFlashes(w, r)
	if extra, ok := data["Flashes"].([]flash); ok {
		flashes = append(flashes, extra...)
	}
	data["Flashes"] = flashes
	data["Year"] = time.Now().Year()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := rd.templates.ExecuteTemplate(w, name, data); err != nil {
		rd.logger.Error("template error", "template", name, "error", err)
	}
}

// setFlash stores a one-shot message shown on the next rendered page.
func setFlash(w http.ResponseWriter, kind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(kind + "|" + message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlashes(w http.ResponseWriter, r *http.Request) []flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	clearCookie(w, flashCookieName)

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(raw, "|")
	if !ok {
		return nil
	}
	return []flash{{Kind: kind, Message: msg}}
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
