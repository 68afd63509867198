package handler

import (
	"encoding/json"
	"net/http"

	"github.com/parisxmas/fsdash/internal/service"
	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/internal/web"
	"go.uber.org/zap"
)

// Flash kinds.
const (
	flashSuccess = "success"
	flashError   = "error"
)

// Page is the data every template receives.
type Page struct {
	Title         string
	Nav           string
	Flash         *session.Flash
	Authenticated bool
	Data          any
}

// Base carries what every page handler needs.
type Base struct {
	Pages *web.Renderer
	Auth  *service.AuthService
	Log   *zap.Logger
}

// render writes page name. For authenticated requests the pending flash is
// consumed, unless the page carries one already.
func (b *Base) render(w http.ResponseWriter, r *http.Request, code int, name string, p Page) {
	if s, ok := session.FromContext(r.Context()); ok {
		p.Authenticated = true
		if p.Flash == nil {
			p.Flash = b.Auth.TakeFlash(r.Context(), s)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := b.Pages.Render(w, name, p); err != nil {
		b.Log.Error("render page", zap.String("page", name), zap.Error(err))
	}
}

// redirect stores a flash for the next page and sends a 303.
func (b *Base) redirect(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	if message != "" {
		b.Auth.Flash(r.Context(), session.MustFromContext(r.Context()), kind, message)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
