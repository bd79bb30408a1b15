package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/blockstreet/blockstreet/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.deps.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	if s.deps.API != nil {
		s.router.Route("/v1", func(r chi.Router) {
			s.deps.API.Routes(r)
		})
	}
}
