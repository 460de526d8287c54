package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/internal/cache"
	"github.com/ajitpratap0/strateval/internal/db"
	"github.com/ajitpratap0/strateval/internal/events"
)

// Server represents the REST API server
type Server struct {
	router  *gin.Engine
	db      *db.DB
	handler *EvaluationHandler
	hub     *Hub
	limiter *RateLimiter
	addr    string
	server  *http.Server
}

// Config contains server configuration
type Config struct {
	Host string
	Port int

	// RatePerSecond and Burst bound requests per client IP. A zero rate
	// disables limiting.
	RatePerSecond float64
	Burst         int

	DB       *db.DB
	Cache    *cache.ReportCache
	Bus      *events.Bus
	Notifier events.Notifier
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // TODO: Configure allowed origins
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	// Without a database the repository still exists; its methods report the
	// missing pool as errors the handlers turn into 500s.
	repo := db.NewEvaluationRepository(nil)
	if config.DB != nil {
		repo = db.NewEvaluationRepositoryWithDB(config.DB)
	}

	hub := NewHub()

	// With a bus the hub is fed by a subscription instead of direct handler
	// broadcasts, so clients also see runs started on other instances and
	// local events are not delivered twice.
	handlerHub := hub
	if config.Bus != nil {
		if _, err := config.Bus.SubscribeAll(func(event *events.EvaluationEvent) error {
			return hub.BroadcastEvent(event)
		}); err != nil {
			log.Warn().Err(err).Msg("Event bus subscription failed, falling back to direct broadcasts")
		} else {
			handlerHub = nil
		}
	}

	server := &Server{
		router:  router,
		db:      config.DB,
		handler: NewEvaluationHandler(repo, config.Cache, config.Bus, config.Notifier, handlerHub),
		hub:     hub,
		addr:    addr,
	}

	if config.RatePerSecond > 0 {
		server.limiter = NewRateLimiter(config.RatePerSecond, config.Burst)
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Hub exposes the WebSocket hub so callers can feed it events from
// subscriptions of their own.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go s.hub.Run()
	if s.limiter != nil {
		go s.limiter.StartCleanupWorker(context.Background())
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Log request
		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		logEvent := log.Info().
			Str("method", method).
			Str("path", path).
			Str("query", query).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", clientIP)

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
