package events

import (
	"strings"
	"testing"
	"time"
)

func TestNewTelegramNotifier(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		chatID  int64
		wantErr string
	}{
		{
			name:    "empty token",
			token:   "",
			chatID:  123456,
			wantErr: "bot token is required",
		},
		{
			name:    "zero chat ID",
			token:   "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11",
			chatID:  0,
			wantErr: "chat ID is required",
		},
		{
			// A well-formed token still fails because the constructor
			// validates against the Telegram API, which tests cannot reach.
			name:    "unreachable API",
			token:   "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11",
			chatID:  123456,
			wantErr: "failed to create telegram bot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier, err := NewTelegramNotifier(tt.token, tt.chatID)
			if err == nil {
				t.Fatal("expected an error")
			}
			if notifier != nil {
				t.Error("expected nil notifier on error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFormatEventCompleted(t *testing.T) {
	event := &EvaluationEvent{
		Type:         EventEvaluationCompleted,
		EvaluationID: "eval-1",
		Strategy:     "momentum",
		Sharpe:       1.8,
		Robustness:   77.0,
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	text := formatEvent(event)

	for _, want := range []string{
		"✅ *Evaluation Completed*",
		"*Strategy:* momentum",
		"*Evaluation:* `eval-1`",
		"*Sharpe:* 1.80",
		"*Robustness:* 77.0",
		"_2026-03-01 12:00:00 UTC_",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted message missing %q:\n%s", want, text)
		}
	}
}

func TestFormatEventFailed(t *testing.T) {
	event := &EvaluationEvent{
		Type:         EventEvaluationFailed,
		EvaluationID: "eval-2",
		Strategy:     "breakout",
		Error:        "insufficient history",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	text := formatEvent(event)

	if !strings.Contains(text, "❌ *Evaluation Failed*") {
		t.Errorf("missing failure title:\n%s", text)
	}
	if !strings.Contains(text, "*Error:* insufficient history") {
		t.Errorf("missing error line:\n%s", text)
	}
	if strings.Contains(text, "*Sharpe:*") {
		t.Errorf("failed event should not carry metrics:\n%s", text)
	}
}

func TestFormatEventStarted(t *testing.T) {
	event := &EvaluationEvent{
		Type:         EventEvaluationStarted,
		EvaluationID: "eval-3",
		Strategy:     "momentum",
	}

	text := formatEvent(event)

	if !strings.Contains(text, "🔄 *Evaluation Started*") {
		t.Errorf("missing start title:\n%s", text)
	}
	if strings.Contains(text, "*Sharpe:*") {
		t.Errorf("started event should not carry metrics:\n%s", text)
	}
}

func TestFormatEventMetadata(t *testing.T) {
	event := &EvaluationEvent{
		Type:         EventEvaluationCompleted,
		EvaluationID: "eval-4",
		Strategy:     "momentum",
		Metadata:     map[string]interface{}{"trades": 120},
	}

	text := formatEvent(event)

	if !strings.Contains(text, "• *trades*: 120") {
		t.Errorf("missing metadata bullet:\n%s", text)
	}
}
