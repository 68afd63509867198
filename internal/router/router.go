package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/parisxmas/fsdash/internal/auth"
	"github.com/parisxmas/fsdash/internal/handler"
	mw "github.com/parisxmas/fsdash/internal/middleware"
	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/internal/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Dashboard   *handler.DashboardHandler
	Submissions *handler.SubmissionHandler
	Export      *handler.ExportHandler
	Health      *handler.HealthHandler
}

func New(sessionSecret string, sessions *session.Manager, h Handlers, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Recovery(log))
	r.Use(mw.Logger(log))

	// Public routes
	r.Get("/healthz", h.Health.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Handle("/static/*", web.Static())
	r.Get("/", h.Auth.Root)
	r.Get("/login", h.Auth.LoginPage)
	r.Post("/login", h.Auth.Login)

	// Session-gated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(sessionSecret, sessions, log))

		r.Post("/logout", h.Auth.Logout)
		r.Post("/flash/dismiss", h.Auth.DismissFlash)

		r.Get("/dashboard", h.Dashboard.Dashboard)

		r.Get("/submissions", h.Submissions.List)
		r.Get("/submissions/export", h.Export.Export)
		r.Get("/submissions/new", h.Submissions.NewForm)
		r.Post("/submissions/new", h.Submissions.Create)
		r.Get("/submissions/{id}", h.Submissions.Detail)
		r.Post("/submissions/{id}/status", h.Submissions.UpdateStatus)
		r.Post("/submissions/{id}/retry", h.Submissions.Retry)

		r.Get("/api/submissions", h.Submissions.APIList)
	})

	return r
}
