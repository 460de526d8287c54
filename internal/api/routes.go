package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ajitpratap0/strateval/internal/metrics"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// API v1 group
	v1 := s.router.Group("/api/v1")
	if s.limiter != nil {
		v1.Use(s.limiter.Middleware())
	}
	{
		// Status endpoints
		v1.GET("/status", s.handleGetStatus)
		v1.GET("/health", s.handleGetHealth)

		// Evaluation endpoints
		s.handler.RegisterRoutes(v1)

		// Strategy ranking endpoints
		strategies := v1.Group("/strategies")
		{
			strategies.GET("/top", s.handler.TopStrategies)
		}

		// WebSocket event stream
		v1.GET("/ws", s.handleWebSocket)
	}

	// Prometheus scrape endpoint, shared with the API port. The rate limiter
	// does not apply here.
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Root endpoint
	s.router.GET("/", s.handleRoot)
}
