package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/parisxmas/fsdash/internal/metrics"
	"go.uber.org/zap"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Logger logs every request and records the request metrics.
func Logger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start)

			route := routePattern(r)
			metrics.ObserveHTTP(r.Method, route, sw.status, elapsed)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", sw.status),
				zap.Duration("duration", elapsed.Round(time.Millisecond)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr),
			}
			switch {
			case sw.status >= 500:
				log.Error("request", fields...)
			case route == "/healthz" || route == "/metrics" || route == "/static/*":
				log.Debug("request", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}

// routePattern keeps the metrics label set bounded by using the chi route
// pattern instead of the raw path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
