package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Evaluation statuses (bounded set)
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	// Evaluation failure reasons (bounded set)
	FailureInsufficientHistory = "insufficient_history"
	FailureInvalidInput        = "invalid_input"
	FailureStorage             = "storage"
	FailureTimeout             = "timeout"
	FailureOther               = "other"

	// Source fetch error categories (bounded set)
	SourceErrorTimeout     = "timeout"
	SourceErrorRateLimit   = "rate_limit"
	SourceErrorAuth        = "authentication"
	SourceErrorNetwork     = "network"
	SourceErrorInvalidReq  = "invalid_request"
	SourceErrorServerError = "server_error"
	SourceErrorNotFound    = "not_found"
	SourceErrorOther       = "other"
)

// NormalizeEvaluationFailure maps arbitrary failure reasons to bounded set
func NormalizeEvaluationFailure(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "insufficient") || strings.Contains(lower, "no trades") || strings.Contains(lower, "history"):
		return FailureInsufficientHistory
	case strings.Contains(lower, "invalid") || strings.Contains(lower, "parse") || strings.Contains(lower, "unmarshal"):
		return FailureInvalidInput
	case strings.Contains(lower, "database") || strings.Contains(lower, "storage") || strings.Contains(lower, "save"):
		return FailureStorage
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return FailureTimeout
	default:
		return FailureOther
	}
}

// NormalizeSourceError maps arbitrary source fetch errors to bounded set
func NormalizeSourceError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return SourceErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return SourceErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return SourceErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return SourceErrorNetwork
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "no such file") || strings.Contains(errStr, "404"):
		return SourceErrorNotFound
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return SourceErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return SourceErrorServerError
	default:
		return SourceErrorOther
	}
}

// Evaluation Pipeline Metrics
var (
	// Evaluations by terminal status
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strateval_evaluations_total",
		Help: "Total number of strategy evaluations by status",
	}, []string{"status"})

	// Evaluation duration
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "strateval_evaluation_duration_ms",
		Help:    "End-to-end strategy evaluation duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	// Evaluation failures by normalized reason
	EvaluationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strateval_evaluation_failures_total",
		Help: "Total number of evaluation failures by reason",
	}, []string{"reason"})

	// Trades processed across all evaluations
	TradesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strateval_trades_evaluated_total",
		Help: "Total number of trades processed by evaluations",
	})

	// Monte Carlo paths simulated
	MonteCarloPaths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strateval_monte_carlo_paths_total",
		Help: "Total number of Monte Carlo equity paths simulated",
	})

	// Walk-forward windows analyzed
	WalkForwardWindows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strateval_walk_forward_windows_total",
		Help: "Total number of walk-forward windows analyzed",
	})

	// Latest Sharpe by strategy
	StrategySharpe = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "strateval_strategy_sharpe",
		Help: "Most recent annualized Sharpe ratio by strategy",
	}, []string{"strategy"})

	// Latest robustness score by strategy
	StrategyRobustness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "strateval_strategy_robustness",
		Help: "Most recent robustness score (0-100) by strategy",
	}, []string{"strategy"})

	// Stored evaluations
	EvaluationsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strateval_evaluations_stored",
		Help: "Number of evaluation reports stored in the database",
	})

	// Distinct strategies tracked
	StrategiesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strateval_strategies_tracked",
		Help: "Number of distinct strategies with stored evaluations",
	})

	// Share of completed evaluations judged stable
	StableStrategyShare = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strateval_stable_strategy_share",
		Help: "Share of completed evaluations judged stable (0.0 to 1.0)",
	})
)

// System Health Metrics
var (
	// Database connections
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strateval_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strateval_database_connections_idle",
		Help: "Number of idle database connections",
	})

	// Database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "strateval_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	// Redis cache hit rate
	RedisCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strateval_redis_cache_hit_rate",
		Help: "Report cache hit rate as a ratio (0.0 to 1.0)",
	})

	// Redis operations
	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strateval_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})

	// API request duration
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "strateval_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	// HTTP requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strateval_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	// Errors
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strateval_errors_total",
		Help: "Total number of errors by type",
	}, []string{"type", "component"})

	// Event bus traffic
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strateval_events_published_total",
		Help: "Total number of evaluation events published",
	})

	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strateval_events_received_total",
		Help: "Total number of evaluation events received",
	})

	// Outbound notifications
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strateval_notifications_total",
		Help: "Total outbound notifications by channel and status",
	}, []string{"channel", "status"})

	// Webhook circuit breaker state (1 = open, 0 = closed)
	WebhookBreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strateval_webhook_breaker_open",
		Help: "Webhook circuit breaker state (1 = open, 0 = closed)",
	})

	// Trade source fetch duration
	SourceFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "strateval_source_fetch_duration_ms",
		Help:    "Trade source fetch duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"source"})

	// Trade source fetch errors
	SourceFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strateval_source_fetch_errors_total",
		Help: "Total trade source fetch errors by category",
	}, []string{"source", "error_type"})
)

// Helper functions to update metrics

// RecordEvaluation records a finished evaluation with duration
func RecordEvaluation(status string, durationMs float64) {
	EvaluationsTotal.WithLabelValues(status).Inc()
	EvaluationDuration.Observe(durationMs)
}

// RecordEvaluationFailure records a failed evaluation with normalized reason
func RecordEvaluationFailure(reason string) {
	normalizedReason := NormalizeEvaluationFailure(reason)
	EvaluationFailures.WithLabelValues(normalizedReason).Inc()
}

// RecordTradesEvaluated adds to the processed trade count
func RecordTradesEvaluated(count int) {
	TradesEvaluated.Add(float64(count))
}

// RecordMonteCarloPaths adds to the simulated path count
func RecordMonteCarloPaths(count int) {
	MonteCarloPaths.Add(float64(count))
}

// RecordWalkForwardWindows adds to the walk-forward window count
func RecordWalkForwardWindows(count int) {
	WalkForwardWindows.Add(float64(count))
}

// SetStrategyScores updates the latest scores for a strategy
func SetStrategyScores(strategy string, sharpe, robustness float64) {
	StrategySharpe.WithLabelValues(strategy).Set(sharpe)
	StrategyRobustness.WithLabelValues(strategy).Set(robustness)
}

// UpdateDatabaseConnections updates database connection metrics
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

// RecordAPIRequest records an API request with duration
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

// RecordDatabaseQuery records a database query
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// RecordEventPublished records a published evaluation event
func RecordEventPublished() {
	EventsPublished.Inc()
}

// RecordEventReceived records a received evaluation event
func RecordEventReceived() {
	EventsReceived.Inc()
}

// RecordNotification records an outbound notification attempt
func RecordNotification(channel string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	Notifications.WithLabelValues(channel, status).Inc()
}

// SetWebhookBreakerOpen updates the webhook breaker state gauge
func SetWebhookBreakerOpen(open bool) {
	state := 0.0
	if open {
		state = 1.0
	}
	WebhookBreakerOpen.Set(state)
}

// RecordSourceFetch records a trade source fetch with normalized error category
func RecordSourceFetch(source string, durationMs float64, err error) {
	SourceFetchDuration.WithLabelValues(source).Observe(durationMs)
	if err != nil {
		errorCategory := NormalizeSourceError(err)
		SourceFetchErrors.WithLabelValues(source, errorCategory).Inc()
	}
}
