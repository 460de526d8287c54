package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/internal/cache"
	"github.com/ajitpratap0/strateval/internal/db"
	"github.com/ajitpratap0/strateval/internal/events"
	"github.com/ajitpratap0/strateval/internal/metrics"
	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

// evaluationTimeout bounds a single background engine run, including the
// database writes that persist its outcome.
const evaluationTimeout = 5 * time.Minute

// EvaluationHandler handles HTTP requests for evaluation runs
type EvaluationHandler struct {
	repo     *db.EvaluationRepository
	reports  *cache.ReportCache
	bus      *events.Bus
	notifier events.Notifier
	hub      *Hub
}

// NewEvaluationHandler creates a new evaluation handler. Cache, bus, notifier
// and hub are optional; delivery through them is best-effort.
func NewEvaluationHandler(repo *db.EvaluationRepository, reports *cache.ReportCache, bus *events.Bus, notifier events.Notifier, hub *Hub) *EvaluationHandler {
	return &EvaluationHandler{
		repo:     repo,
		reports:  reports,
		bus:      bus,
		notifier: notifier,
		hub:      hub,
	}
}

// RunEvaluationRequest defines the request body for starting an evaluation.
// Strategies maps each strategy name to its raw trade history. Config, when
// present, overlays the engine defaults field by field.
type RunEvaluationRequest struct {
	Strategies map[string][]evaluation.RawTrade `json:"strategies" binding:"required"`
	Config     json.RawMessage                  `json:"config,omitempty"`
}

// RunEvaluation starts a new evaluation run (async)
// @Summary Start an evaluation run
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param request body RunEvaluationRequest true "Strategies and engine config overrides"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/evaluations [post]
func (h *EvaluationHandler) RunEvaluation(c *gin.Context) {
	var req RunEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if len(req.Strategies) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": "at least one strategy with trades is required",
		})
		return
	}

	// Overlay request overrides on the engine defaults. Fields absent from
	// the override document keep their default values.
	cfg := evaluation.DefaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid config overrides",
				"details": err.Error(),
			})
			return
		}
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid config overrides",
			"details": err.Error(),
		})
		return
	}

	strategies := make(map[string][]evaluation.Trade, len(req.Strategies))
	names := make([]string, 0, len(req.Strategies))
	for name, raw := range req.Strategies {
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": "strategy name must not be empty",
			})
			return
		}
		strategies[name] = evaluation.NormalizeTrades(raw)
		names = append(names, name)
	}
	sort.Strings(names)

	id := uuid.New().String()

	ctx := c.Request.Context()
	if err := h.repo.CreatePending(ctx, id, names[0]); err != nil {
		log.Error().Err(err).Msg("Failed to create evaluation")
		metrics.RecordError("database", "api")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create evaluation",
			"details": err.Error(),
		})
		return
	}

	h.publishEvent(&events.EvaluationEvent{
		Type:         events.EventEvaluationStarted,
		EvaluationID: id,
		Strategy:     names[0],
	})

	go h.runEvaluation(id, strategies, cfg)

	c.JSON(http.StatusAccepted, gin.H{
		"id":      id,
		"status":  db.StatusPending,
		"message": "Evaluation created successfully. Use GET /api/v1/evaluations/:id to check status.",
	})
}

// runEvaluation executes the engine and persists the outcome. It runs in the
// background with its own context: the request that accepted the run has
// already returned.
func (h *EvaluationHandler) runEvaluation(id string, strategies map[string][]evaluation.Trade, cfg evaluation.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), evaluationTimeout)
	defer cancel()

	if err := h.repo.SetStatus(ctx, id, db.StatusRunning); err != nil {
		log.Warn().Err(err).Str("evaluation_id", id).Msg("Failed to mark evaluation running")
	}

	start := time.Now()
	report := evaluation.Evaluate(strategies, cfg)
	durationMs := float64(time.Since(start).Milliseconds())

	rec := db.NewEvaluationRecord(report)
	rec.ID = id

	if err := h.repo.Save(ctx, rec); err != nil {
		log.Error().Err(err).Str("evaluation_id", id).Msg("Failed to save evaluation")
		metrics.RecordError("database", "api")
		metrics.RecordEvaluationFailure(metrics.FailureStorage)
		if err := h.repo.SetStatus(ctx, id, db.StatusFailed); err != nil {
			log.Warn().Err(err).Str("evaluation_id", id).Msg("Failed to mark evaluation failed")
		}
		h.publishEvent(&events.EvaluationEvent{
			Type:         events.EventEvaluationFailed,
			EvaluationID: id,
			Strategy:     rec.Strategy,
			Error:        "failed to save evaluation report",
		})
		return
	}

	if !report.Success {
		metrics.RecordEvaluation(metrics.StatusFailed, durationMs)
		metrics.RecordEvaluationFailure(metrics.NormalizeEvaluationFailure(report.Error))
		h.publishEvent(&events.EvaluationEvent{
			Type:         events.EventEvaluationFailed,
			EvaluationID: id,
			Strategy:     rec.Strategy,
			Error:        report.Error,
		})
		return
	}

	metrics.RecordEvaluation(metrics.StatusCompleted, durationMs)
	if report.Metrics != nil {
		metrics.RecordTradesEvaluated(report.Metrics.TradeCount)
	}
	if report.MonteCarlo != nil {
		metrics.RecordMonteCarloPaths(report.MonteCarlo.Trials)
	}
	if report.WalkForward != nil {
		metrics.RecordWalkForwardWindows(len(report.WalkForward.Folds))
	}
	if report.Comparison != nil {
		for name, ev := range report.Comparison.Strategies {
			metrics.SetStrategyScores(name, ev.Metrics.Sharpe, ev.Overfitting.RobustnessScore)
		}
	} else {
		metrics.SetStrategyScores(rec.Strategy, rec.Sharpe, rec.RobustnessScore)
	}

	if h.reports != nil {
		if err := h.reports.Set(ctx, id, report); err != nil {
			log.Debug().Err(err).Str("evaluation_id", id).Msg("Report not cached")
		}
	}

	h.publishEvent(&events.EvaluationEvent{
		Type:         events.EventEvaluationCompleted,
		EvaluationID: id,
		Strategy:     rec.Strategy,
		Sharpe:       rec.Sharpe,
		Robustness:   rec.RobustnessScore,
	})

	log.Info().
		Str("evaluation_id", id).
		Str("strategy", rec.Strategy).
		Float64("duration_ms", durationMs).
		Msg("Evaluation run finished")
}

// publishEvent pushes a lifecycle event to every configured sink. Delivery is
// best-effort: failures are logged and never affect the evaluation itself.
func (h *EvaluationHandler) publishEvent(event *events.EvaluationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event.ID = uuid.New()
	event.Timestamp = time.Now()

	if h.bus != nil {
		if err := h.bus.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to publish event")
		}
	}
	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, event); err != nil {
			log.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to deliver notification")
		}
	}
	if h.hub != nil {
		if err := h.hub.BroadcastEvent(event); err != nil {
			log.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to broadcast event")
		}
	}
}

// GetEvaluation retrieves an evaluation run by ID
// @Summary Get evaluation status and results
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} db.EvaluationRecord
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/evaluations/{id} [get]
func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	idStr := c.Param("id")

	if _, err := uuid.Parse(idStr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid evaluation ID format",
			"details": "Expected UUID format",
		})
		return
	}

	ctx := c.Request.Context()

	// Terminal runs can be served straight from the cache: a cached report
	// carries everything the record envelope derives from it.
	if report, ok := h.reports.Get(ctx, idStr); ok {
		rec := db.NewEvaluationRecord(report)
		rec.ID = idStr
		c.JSON(http.StatusOK, rec)
		return
	}

	rec, err := h.repo.GetByID(ctx, idStr)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			log.Warn().Err(err).Str("evaluation_id", idStr).Msg("Evaluation not found")
			c.JSON(http.StatusNotFound, gin.H{
				"error":         "Evaluation not found",
				"evaluation_id": idStr,
				"details":       err.Error(),
			})
			return
		}
		log.Error().Err(err).Str("evaluation_id", idStr).Msg("Failed to load evaluation")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load evaluation",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetEvaluationReport renders the stored report as plain text
// @Summary Get the plain-text evaluation report
// @Tags Evaluations
// @Produce plain
// @Param id path string true "Evaluation ID"
// @Success 200 {string} string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/evaluations/{id}/report [get]
func (h *EvaluationHandler) GetEvaluationReport(c *gin.Context) {
	idStr := c.Param("id")

	if _, err := uuid.Parse(idStr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid evaluation ID format",
			"details": "Expected UUID format",
		})
		return
	}

	ctx := c.Request.Context()

	if report, ok := h.reports.Get(ctx, idStr); ok {
		c.String(http.StatusOK, evaluation.GenerateReport(report))
		return
	}

	rec, err := h.repo.GetByID(ctx, idStr)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":         "Evaluation not found",
				"evaluation_id": idStr,
				"details":       err.Error(),
			})
			return
		}
		log.Error().Err(err).Str("evaluation_id", idStr).Msg("Failed to load evaluation")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load evaluation",
			"details": err.Error(),
		})
		return
	}

	if rec.Report == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Evaluation report not available",
			"details": "Evaluation is still " + rec.Status,
			"status":  rec.Status,
		})
		return
	}

	// Backfill the cache so the next read skips the store.
	if h.reports != nil {
		if err := h.reports.Set(ctx, idStr, rec.Report); err != nil {
			log.Debug().Err(err).Str("evaluation_id", idStr).Msg("Report not cached")
		}
	}

	c.String(http.StatusOK, evaluation.GenerateReport(rec.Report))
}

// ListEvaluations retrieves a paginated list of evaluation runs
// @Summary List evaluation runs
// @Tags Evaluations
// @Produce json
// @Param limit query int false "Number of results per page" default(20)
// @Param offset query int false "Offset for pagination" default(0)
// @Param strategy query string false "Filter to one strategy"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/evaluations [get]
func (h *EvaluationHandler) ListEvaluations(c *gin.Context) {
	// Parse pagination parameters
	limitStr := c.DefaultQuery("limit", "20")
	offsetStr := c.DefaultQuery("offset", "0")

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid limit parameter",
			"details": "Limit must be between 1 and 100",
		})
		return
	}

	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid offset parameter",
			"details": "Offset must be >= 0",
		})
		return
	}

	strategy := c.Query("strategy")

	ctx := c.Request.Context()

	total, err := h.repo.Count(ctx, strategy)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count evaluations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list evaluations",
			"details": err.Error(),
		})
		return
	}

	var summaries []*db.EvaluationSummary
	if strategy != "" {
		summaries, err = h.repo.ListByStrategy(ctx, strategy, limit, offset)
	} else {
		summaries, err = h.repo.List(ctx, limit, offset)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to list evaluations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list evaluations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"evaluations": summaries,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
		"has_more":    offset+len(summaries) < total,
	})
}

// DeleteEvaluation deletes an evaluation run
// @Summary Delete an evaluation run
// @Tags Evaluations
// @Param id path string true "Evaluation ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/evaluations/{id} [delete]
func (h *EvaluationHandler) DeleteEvaluation(c *gin.Context) {
	idStr := c.Param("id")

	if _, err := uuid.Parse(idStr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid evaluation ID format",
			"details": "Expected UUID format",
		})
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.Delete(ctx, idStr); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":         "Evaluation not found",
				"evaluation_id": idStr,
				"details":       err.Error(),
			})
			return
		}
		log.Error().Err(err).Str("evaluation_id", idStr).Msg("Failed to delete evaluation")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to delete evaluation",
			"details": err.Error(),
		})
		return
	}

	// Drop the cached report as well
	if h.reports != nil {
		if err := h.reports.Delete(ctx, idStr); err != nil {
			log.Debug().Err(err).Str("evaluation_id", idStr).Msg("Cached report not deleted")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Evaluation deleted successfully",
		"evaluation_id": idStr,
	})
}

// TopStrategies retrieves the highest-robustness completed evaluations
// @Summary Rank strategies by robustness
// @Tags Evaluations
// @Produce json
// @Param limit query int false "Number of results" default(10)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/strategies/top [get]
func (h *EvaluationHandler) TopStrategies(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "10")

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid limit parameter",
			"details": "Limit must be between 1 and 100",
		})
		return
	}

	ctx := c.Request.Context()
	summaries, err := h.repo.TopByRobustness(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to rank strategies")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to rank strategies",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"strategies": summaries,
		"limit":      limit,
	})
}

// RegisterRoutes registers all evaluation-related routes
func (h *EvaluationHandler) RegisterRoutes(router *gin.RouterGroup) {
	evaluations := router.Group("/evaluations")
	{
		evaluations.POST("", h.RunEvaluation)
		evaluations.GET("", h.ListEvaluations)
		evaluations.GET("/:id", h.GetEvaluation)
		evaluations.GET("/:id/report", h.GetEvaluationReport)
		evaluations.DELETE("/:id", h.DeleteEvaluation)
	}
}
