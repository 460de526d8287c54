package events

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier delivers evaluation notifications to one outbound channel
type Notifier interface {
	Notify(ctx context.Context, event *EvaluationEvent) error
}

// Fanout delivers each event to every configured notifier
type Fanout struct {
	notifiers []Notifier
}

// NewFanout creates a new notification fanout
func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{
		notifiers: notifiers,
	}
}

// Add registers another notifier
func (f *Fanout) Add(n Notifier) {
	if n == nil {
		return
	}
	f.notifiers = append(f.notifiers, n)
}

// Len returns the number of registered notifiers
func (f *Fanout) Len() int {
	return len(f.notifiers)
}

// Notify sends an event to all configured notifiers. Delivery failures are
// logged per channel; the last error is returned so callers can surface it.
func (f *Fanout) Notify(ctx context.Context, event *EvaluationEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var lastErr error
	for _, notifier := range f.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("type", string(event.Type)).
				Str("evaluation_id", event.EvaluationID).
				Msg("Failed to send notification")
			lastErr = err
		}
	}

	return lastErr
}

// LogNotifier writes notifications to the log
type LogNotifier struct{}

// NewLogNotifier creates a new log-based notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the event at a level matching its lifecycle stage
func (l *LogNotifier) Notify(ctx context.Context, event *EvaluationEvent) error {
	logger := log.Info()
	switch event.Type {
	case EventEvaluationFailed:
		logger = log.Error()
	case EventEvaluationStarted:
		logger = log.Debug()
	}

	if event.Metadata != nil {
		for key, value := range event.Metadata {
			logger = logger.Interface(key, value)
		}
	}

	logger.
		Str("type", string(event.Type)).
		Str("evaluation_id", event.EvaluationID).
		Str("strategy", event.Strategy).
		Time("event_time", event.Timestamp).
		Msgf("Evaluation notification: %s", event.Type)

	return nil
}
