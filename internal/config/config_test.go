package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.CancellationWindow != 24*time.Hour {
		t.Errorf("expected 24h cancellation window, got %s", cfg.CancellationWindow)
	}
	if cfg.ReminderInterval != 30*time.Minute {
		t.Errorf("expected 30m reminder interval, got %s", cfg.ReminderInterval)
	}
	if cfg.ReminderLookahead != 25*time.Hour {
		t.Errorf("expected 25h reminder lookahead, got %s", cfg.ReminderLookahead)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CANCELLATION_WINDOW", "48h")
	t.Setenv("RUN_REMINDER_TICKER", "true")
	t.Setenv("OUTBOX_BATCH_SIZE", "10")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.CancellationWindow != 48*time.Hour {
		t.Errorf("expected 48h cancellation window, got %s", cfg.CancellationWindow)
	}
	if !cfg.RunReminderTicker {
		t.Error("expected reminder ticker enabled")
	}
	if cfg.OutboxBatchSize != 10 {
		t.Errorf("expected outbox batch size 10, got %d", cfg.OutboxBatchSize)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("REMINDER_INTERVAL", "soon")

	cfg := Load()

	if cfg.OutboxBatchSize != 25 {
		t.Errorf("expected fallback batch size 25, got %d", cfg.OutboxBatchSize)
	}
	if cfg.ReminderInterval != 30*time.Minute {
		t.Errorf("expected fallback interval 30m, got %s", cfg.ReminderInterval)
	}
}
