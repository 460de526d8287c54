// Package events publishes evaluation lifecycle events over NATS so other
// services can react to finished runs without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/internal/metrics"
)

// Bus provides evaluation event publishing via NATS
type Bus struct {
	nc     *nats.Conn
	prefix string // Subject prefix for namespacing
}

// BusConfig configures the event bus
type BusConfig struct {
	NATSURL string
	Prefix  string // Subject prefix (default: "strateval.")
	Name    string // Client connection name (default: "strateval")
}

// EventType represents the lifecycle stage an event describes
type EventType string

const (
	EventEvaluationStarted   EventType = "evaluation.started"
	EventEvaluationCompleted EventType = "evaluation.completed"
	EventEvaluationFailed    EventType = "evaluation.failed"
)

// EvaluationEvent is the envelope published for every lifecycle stage
type EvaluationEvent struct {
	ID           uuid.UUID              `json:"id"`
	Type         EventType              `json:"type"`
	EvaluationID string                 `json:"evaluation_id"`
	Strategy     string                 `json:"strategy"`
	Sharpe       float64                `json:"sharpe,omitempty"`
	Robustness   float64                `json:"robustness_score,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// EventHandler is a callback for handling received events
type EventHandler func(event *EvaluationEvent) error

// DefaultBusConfig returns default configuration
func DefaultBusConfig() BusConfig {
	return BusConfig{
		NATSURL: "nats://localhost:4222",
		Prefix:  "strateval.",
		Name:    "strateval",
	}
}

// NewBus creates a new event bus instance
func NewBus(config BusConfig) (*Bus, error) {
	if config.Name == "" {
		config.Name = "strateval"
	}

	// Connect to NATS
	nc, err := nats.Connect(
		config.NATSURL,
		nats.Name(config.Name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if config.Prefix == "" {
		config.Prefix = "strateval."
	}

	log.Info().
		Str("nats_url", config.NATSURL).
		Str("prefix", config.Prefix).
		Msg("Event bus initialized")

	return &Bus{
		nc:     nc,
		prefix: config.Prefix,
	}, nil
}

// Publish publishes an evaluation event
func (b *Bus) Publish(ctx context.Context, event *EvaluationEvent) error {
	// Check context cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Check connection health
	if !b.nc.IsConnected() {
		return fmt.Errorf("event bus not connected")
	}

	// Set defaults
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}

	// Serialize event
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Subject pattern: strateval.evaluation.{stage}
	subject := b.prefix + string(event.Type)

	// Publish event
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.RecordEventPublished()
	log.Debug().
		Str("event_id", event.ID.String()).
		Str("type", string(event.Type)).
		Str("evaluation_id", event.EvaluationID).
		Str("strategy", event.Strategy).
		Str("subject", subject).
		Msg("Published event")

	return nil
}

// PublishStarted publishes an evaluation.started event
func (b *Bus) PublishStarted(ctx context.Context, evaluationID, strategy string) error {
	return b.Publish(ctx, &EvaluationEvent{
		Type:         EventEvaluationStarted,
		EvaluationID: evaluationID,
		Strategy:     strategy,
	})
}

// PublishCompleted publishes an evaluation.completed event with the headline numbers
func (b *Bus) PublishCompleted(ctx context.Context, evaluationID, strategy string, sharpe, robustness float64) error {
	return b.Publish(ctx, &EvaluationEvent{
		Type:         EventEvaluationCompleted,
		EvaluationID: evaluationID,
		Strategy:     strategy,
		Sharpe:       sharpe,
		Robustness:   robustness,
	})
}

// PublishFailed publishes an evaluation.failed event carrying the reason
func (b *Bus) PublishFailed(ctx context.Context, evaluationID, strategy, reason string) error {
	return b.Publish(ctx, &EvaluationEvent{
		Type:         EventEvaluationFailed,
		EvaluationID: evaluationID,
		Strategy:     strategy,
		Error:        reason,
	})
}

// createSubscriptionHandler creates a common event handler for subscriptions
func (b *Bus) createSubscriptionHandler(handler EventHandler) func(*nats.Msg) {
	return func(natsMsg *nats.Msg) {
		// Parse event
		var event EvaluationEvent
		if err := json.Unmarshal(natsMsg.Data, &event); err != nil {
			log.Warn().Err(err).Msg("Failed to unmarshal event")
			return
		}

		metrics.RecordEventReceived()

		// Handle event
		if err := handler(&event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("type", string(event.Type)).
				Str("evaluation_id", event.EvaluationID).
				Msg("Event handler error")
			return
		}

		log.Debug().
			Str("event_id", event.ID.String()).
			Str("type", string(event.Type)).
			Str("evaluation_id", event.EvaluationID).
			Msg("Event handled successfully")
	}
}

// Subscribe subscribes to one event type
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) (*Subscription, error) {
	subject := b.prefix + string(eventType)

	sub, err := b.nc.Subscribe(subject, b.createSubscriptionHandler(handler))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	log.Info().
		Str("type", string(eventType)).
		Str("subject", subject).
		Msg("Subscribed to events")

	return &Subscription{
		sub:     sub,
		subject: subject,
	}, nil
}

// SubscribeAll subscribes to every evaluation lifecycle event
func (b *Bus) SubscribeAll(handler EventHandler) (*Subscription, error) {
	// Subject pattern: strateval.evaluation.>
	subject := b.prefix + "evaluation.>"

	sub, err := b.nc.Subscribe(subject, b.createSubscriptionHandler(handler))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	log.Info().
		Str("subject", subject).
		Msg("Subscribed to all evaluation events")

	return &Subscription{
		sub:     sub,
		subject: subject,
	}, nil
}

// GetStats returns event bus statistics
func (b *Bus) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})

	if b.nc != nil {
		stats["connected"] = b.nc.IsConnected()
		stats["status"] = b.nc.Status().String()
		stats["servers"] = b.nc.Servers()
		stats["connected_url"] = b.nc.ConnectedUrl()
		stats["in_msgs"] = b.nc.Stats().InMsgs
		stats["out_msgs"] = b.nc.Stats().OutMsgs
		stats["in_bytes"] = b.nc.Stats().InBytes
		stats["out_bytes"] = b.nc.Stats().OutBytes
		stats["reconnects"] = b.nc.Stats().Reconnects
	}

	return stats
}

// Close closes the event bus connection
func (b *Bus) Close() error {
	if b.nc != nil {
		b.nc.Close()
		log.Info().Msg("Event bus closed")
	}
	return nil
}

// Subscription represents an active subscription
type Subscription struct {
	sub     *nats.Subscription
	subject string
}

// Unsubscribe unsubscribes from the subscription
func (s *Subscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	log.Info().
		Str("subject", s.subject).
		Msg("Unsubscribed from events")

	return nil
}

// IsValid returns whether the subscription is still active
func (s *Subscription) IsValid() bool {
	return s.sub.IsValid()
}
