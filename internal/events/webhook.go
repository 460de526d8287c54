package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/strateval/internal/metrics"
)

const (
	// WebhookMinRequests is the minimum requests before the breaker can trip
	WebhookMinRequests = 5
	// WebhookFailureRatio is the failure ratio that trips the breaker
	WebhookFailureRatio = 0.6
	// WebhookOpenTimeout is how long the breaker stays open before half-open
	WebhookOpenTimeout = 30 * time.Second
	// WebhookHalfOpenMaxReqs is max requests allowed in half-open state
	WebhookHalfOpenMaxReqs = 3
	// WebhookCountInterval is the rolling window for failure counting
	WebhookCountInterval = 10 * time.Second

	defaultWebhookTimeout = 5 * time.Second
	defaultWebhookRate    = 5.0
	defaultWebhookBurst   = 10
)

// WebhookSettings configures an outbound webhook notifier
type WebhookSettings struct {
	URL           string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// WebhookNotifier posts evaluation events as JSON to an HTTP endpoint.
// Deliveries are rate limited and wrapped in a circuit breaker so a dead
// endpoint cannot stall or spam the evaluation pipeline.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewWebhookNotifier creates a webhook notifier for the given settings
func NewWebhookNotifier(settings WebhookSettings) (*WebhookNotifier, error) {
	if settings.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultWebhookTimeout
	}
	if settings.RatePerSecond <= 0 {
		settings.RatePerSecond = defaultWebhookRate
	}
	if settings.Burst <= 0 {
		settings.Burst = defaultWebhookBurst
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: WebhookHalfOpenMaxReqs,
		Interval:    WebhookCountInterval,
		Timeout:     WebhookOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= WebhookMinRequests && failureRatio >= WebhookFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.SetWebhookBreakerOpen(to == gobreaker.StateOpen)
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Webhook circuit breaker state changed")
		},
	})

	return &WebhookNotifier{
		url:     settings.URL,
		client:  &http.Client{Timeout: settings.Timeout},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(settings.RatePerSecond), settings.Burst),
	}, nil
}

// Notify posts the event to the configured endpoint
func (w *WebhookNotifier) Notify(ctx context.Context, event *EvaluationEvent) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, w.post(ctx, event)
	})
	metrics.RecordNotification("webhook", err == nil)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}

	return nil
}

// State returns the current circuit breaker state
func (w *WebhookNotifier) State() gobreaker.State {
	return w.breaker.State()
}

func (w *WebhookNotifier) post(ctx context.Context, event *EvaluationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
