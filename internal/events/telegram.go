package events

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/internal/metrics"
)

// TelegramNotifier sends evaluation notifications to a Telegram chat
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a Telegram notifier for the given bot token and chat
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("chat ID is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info().
		Str("bot_username", api.Self.UserName).
		Int64("chat_id", chatID).
		Msg("Telegram notifier initialized")

	return &TelegramNotifier{
		api:    api,
		chatID: chatID,
	}, nil
}

// Notify sends the event to the configured chat
func (t *TelegramNotifier) Notify(ctx context.Context, event *EvaluationEvent) error {
	text := formatEvent(event)

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"

	_, err := t.api.Send(msg)
	metrics.RecordNotification("telegram", err == nil)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	return nil
}

// formatEvent renders an event as a Telegram Markdown message
func formatEvent(event *EvaluationEvent) string {
	var b strings.Builder

	emoji := "ℹ️"
	title := "Evaluation Update"
	switch event.Type {
	case EventEvaluationStarted:
		emoji = "🔄"
		title = "Evaluation Started"
	case EventEvaluationCompleted:
		emoji = "✅"
		title = "Evaluation Completed"
	case EventEvaluationFailed:
		emoji = "❌"
		title = "Evaluation Failed"
	}

	b.WriteString(fmt.Sprintf("%s *%s*\n\n", emoji, title))
	b.WriteString(fmt.Sprintf("*Strategy:* %s\n", event.Strategy))
	b.WriteString(fmt.Sprintf("*Evaluation:* `%s`\n", event.EvaluationID))

	if event.Type == EventEvaluationCompleted {
		b.WriteString(fmt.Sprintf("*Sharpe:* %.2f\n", event.Sharpe))
		b.WriteString(fmt.Sprintf("*Robustness:* %.1f\n", event.Robustness))
	}
	if event.Error != "" {
		b.WriteString(fmt.Sprintf("*Error:* %s\n", event.Error))
	}

	if len(event.Metadata) > 0 {
		b.WriteString("\n")
		for key, value := range event.Metadata {
			b.WriteString(fmt.Sprintf("• *%s*: %v\n", key, value))
		}
	}

	if !event.Timestamp.IsZero() {
		b.WriteString(fmt.Sprintf("\n_%s_", event.Timestamp.Format("2006-01-02 15:04:05 MST")))
	}

	return b.String()
}
