package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/loggate/loggate/internal/observability"
	"github.com/loggate/loggate/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	if s.opts.Gateway != nil {
		quota := &handlers.QuotaHandlers{Gateway: s.opts.Gateway, Name: s.opts.QuotaName}
		s.router.Route("/v1", func(r chi.Router) {
			r.Post("/logs", quota.PostLog)
			r.Get("/quota", quota.GetQuota)
			r.Post("/quota/reset", quota.ResetQuota)
			r.Put("/quota/remote", quota.SetRemote)
		})
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint mounts the gofulmen signal endpoint when an admin
// token is configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
