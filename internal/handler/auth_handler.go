package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/parisxmas/fsdash/internal/auth"
	"github.com/parisxmas/fsdash/internal/config"
	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/internal/upstream"
	"go.uber.org/zap"
)

const (
	msgLoginOK       = "Login successful"
	msgLoginRejected = "Login rejected"
	msgLoginFailed   = "Login failed, please try again"
)

type AuthHandler struct {
	*Base
	cfg     config.AuthConfig
	api     config.APIConfig
	monitor *upstream.Monitor
}

func NewAuthHandler(base *Base, cfg config.AuthConfig, api config.APIConfig, monitor *upstream.Monitor) *AuthHandler {
	return &AuthHandler{Base: base, cfg: cfg, api: api, monitor: monitor}
}

type loginData struct {
	Mode           string
	APIURL         string
	Username       string
	ServiceChecked bool
	ServiceUp      bool
}

func (h *AuthHandler) loginData(apiURL, username string) loginData {
	d := loginData{Mode: h.cfg.Mode, APIURL: apiURL, Username: username}
	if d.APIURL == "" {
		d.APIURL = h.api.URL
	}
	if h.monitor != nil {
		snap := h.monitor.Last()
		d.ServiceChecked = !snap.CheckedAt.IsZero()
		d.ServiceUp = snap.Up
	}
	return d
}

func (h *AuthHandler) current(r *http.Request) (*session.Session, bool) {
	s, err := h.Auth.Current(r.Context(), auth.SessionID(r, h.cfg.SessionSecret))
	return s, err == nil
}

// Root sends the operator to the dashboard or the login page.
func (h *AuthHandler) Root(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.current(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.current(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", Page{Title: "Login", Data: h.loginData("", "")})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login", Page{
			Title: "Login",
			Flash: &session.Flash{Kind: flashError, Message: msgLoginRejected},
			Data:  h.loginData("", ""),
		})
		return
	}
	creds := session.Credentials{
		APIURL:   r.PostFormValue("apiUrl"),
		APIKey:   r.PostFormValue("apiKey"),
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	s, err := h.Auth.Login(r.Context(), creds)
	if err != nil {
		code, msg := http.StatusUnauthorized, msgLoginRejected
		if !errors.Is(err, session.ErrLoginRejected) {
			code, msg = http.StatusInternalServerError, msgLoginFailed
		}
		h.render(w, r, code, "login", Page{
			Title: "Login",
			Flash: &session.Flash{Kind: flashError, Message: msg},
			Data:  h.loginData(creds.APIURL, creds.Username),
		})
		return
	}

	if err := auth.SetCookie(w, h.cfg.SessionSecret, s.ID, h.cfg.SessionTTL, h.cfg.CookieSecure); err != nil {
		h.Log.Error("issue session cookie", zap.Error(err))
		h.Auth.Logout(r.Context(), s)
		h.render(w, r, http.StatusInternalServerError, "login", Page{
			Title: "Login",
			Flash: &session.Flash{Kind: flashError, Message: msgLoginFailed},
			Data:  h.loginData(creds.APIURL, creds.Username),
		})
		return
	}
	h.Auth.Flash(r.Context(), s, flashSuccess, msgLoginOK)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout is mounted behind the session gate.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Auth.Logout(r.Context(), session.MustFromContext(r.Context()))
	auth.ClearCookie(w, h.cfg.CookieSecure)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// DismissFlash drops the pending notification.
func (h *AuthHandler) DismissFlash(w http.ResponseWriter, r *http.Request) {
	h.Auth.TakeFlash(r.Context(), session.MustFromContext(r.Context()))
	if r.Header.Get("Sec-Fetch-Mode") == "cors" || r.Header.Get("Accept") == "application/json" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	back := "/dashboard"
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Host == r.Host && strings.HasPrefix(ref.Path, "/") {
		back = ref.RequestURI()
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
