package verifier

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/allsmog/zkekyc-go/pkg/jwt"
	"github.com/allsmog/zkekyc-go/pkg/metrics"
	"github.com/allsmog/zkekyc-go/pkg/middleware"
)

// RouterConfig wires the handlers into an HTTP router
type RouterConfig struct {
	Handlers      *Handlers
	TokenVerifier *jwt.Verifier
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	RateLimit     int           // requests per window per client on /api, 0 disables
	RateWindow    time.Duration
	Timeout       time.Duration // per-request deadline, 0 disables
}

// NewRouter builds the verifier API:
//
//	GET  /api/challenge
//	POST /api/enroll
//	POST /api/verify?sessionId=...
//	GET  /api/me                      (bearer session token)
//	GET  /api/admin/check_citizen/{idHash}   (admin token)
//	GET  /api/admin/stats                    (admin token)
//	POST /api/admin/users/{userID}/status    (admin token)
//	GET  /.well-known/jwks.json
//	GET  /health
//	GET  /metrics
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(cfg.Metrics.Middleware)
	r.Use(middleware.CORS)
	if cfg.Timeout > 0 {
		r.Use(chimw.Timeout(cfg.Timeout))
	}

	r.Get("/health", h.Health)
	r.Get("/.well-known/jwks.json", h.JWKS)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateWindow))

		r.Get("/challenge", h.Challenge)
		r.Post("/enroll", h.Enroll)
		r.Post("/verify", h.Verify)

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(cfg.TokenVerifier))
			r.Use(middleware.RequireGroup(h.curve.Name()))
			r.Get("/me", h.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/admin/check_citizen/{idHash}", h.CheckCitizen)
			r.Get("/admin/stats", h.Stats)
			r.Post("/admin/users/{userID}/status", h.SetUserStatus)
		})
	})

	return r
}
