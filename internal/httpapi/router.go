// Package httpapi exposes the engine over a JSON HTTP API.
package httpapi

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies are the collaborators the router serves.
type Dependencies struct {
	Engine *sessionguard.Engine
	Logger *slog.Logger
	// Metrics serves GET /metrics when set.
	Metrics        http.Handler
	EnableOTelHTTP bool
	// TrustedProxies are the peers allowed to set X-Forwarded-For and
	// X-Real-IP. Empty means the socket address is always the client IP.
	TrustedProxies []netip.Prefix
}

// NewRouter builds the chi router for the auth API.
func NewRouter(dep Dependencies) http.Handler {
	logger := dep.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(dep.Engine, logger)
	guard := middleware.Guard(dep.Engine)

	r := chi.NewRouter()
	r.Use(middleware.RealIP(dep.TrustedProxies))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.ClientContext)

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)
	if dep.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", dep.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/password/forgot", h.ForgotPassword)
		r.Post("/password/reset", h.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)
			r.Post("/session/extend", h.ExtendSession)
			r.Get("/devices", h.ListDevices)
			r.Post("/devices/{deviceID}/deactivate", h.DeactivateDevice)
			r.Post("/password/change", h.ChangePassword)
		})
	})

	var handler http.Handler = r
	if dep.EnableOTelHTTP {
		handler = otelhttp.NewHandler(r, "http.server")
	}
	return handler
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
