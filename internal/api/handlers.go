package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/internal/config"
)

// Root handler
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "strateval API",
		"version": config.GetVersion(),
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

// handleGetStatus returns comprehensive system status
func (s *Server) handleGetStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Check database connection
	dbStatus := "healthy"
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			dbStatus = "unhealthy"
			log.Warn().Err(err).Msg("Database health check failed")
		}
	} else {
		dbStatus = "not_configured"
	}

	// Check report cache connection
	cacheStatus := "healthy"
	if s.handler.reports != nil {
		if err := s.handler.reports.Health(c.Request.Context()); err != nil {
			cacheStatus = "unhealthy"
		}
	} else {
		cacheStatus = "not_configured"
	}

	// Check event bus connection
	busStatus := "not_configured"
	if s.handler.bus != nil {
		busStatus = "disconnected"
		if connected, ok := s.handler.bus.GetStats()["connected"].(bool); ok && connected {
			busStatus = "healthy"
		}
	}

	// Determine overall system status
	systemStatus := "healthy"
	if dbStatus == "unhealthy" || cacheStatus == "unhealthy" || busStatus == "disconnected" {
		systemStatus = "degraded"
	}

	status := gin.H{
		"status":    systemStatus,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startTime).Seconds(),
		"version":   config.GetVersion(),
		"components": gin.H{
			"database": gin.H{
				"status": dbStatus,
			},
			"report_cache": gin.H{
				"status": cacheStatus,
			},
			"event_bus": gin.H{
				"status": busStatus,
			},
			"websocket": gin.H{
				"status":  "healthy",
				"clients": s.hub.ClientCount(),
			},
		},
		"system": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":       toMB(memStats.Alloc),
				"total_alloc_mb": toMB(memStats.TotalAlloc),
				"sys_mb":         toMB(memStats.Sys),
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		},
	}

	c.JSON(http.StatusOK, status)
}

// handleGetHealth returns a simple health check (for load balancers)
func (s *Server) handleGetHealth(c *gin.Context) {
	// Quick health check - just verify database connectivity
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// toMB converts bytes to megabytes
func toMB(bytes uint64) float64 {
	return float64(bytes) / 1024 / 1024
}

var startTime = time.Now()
