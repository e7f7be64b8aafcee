package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	appconfig "github.com/smartwell-la/smartwell-platform/internal/config"
	"github.com/smartwell-la/smartwell-platform/internal/events"
	"github.com/smartwell-la/smartwell-platform/internal/notify"
	"github.com/smartwell-la/smartwell-platform/internal/reminders"
	"github.com/smartwell-la/smartwell-platform/internal/users"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// The reminder worker scans upcoming confirmed sessions on an interval and
// dispatches the 24h and 1h notifications. It runs standalone so the cron
// endpoint is not required in deployments with long-lived processes.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Error("reminder worker requires DATABASE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	apptRepo := appointments.NewPostgresRepository(pool)
	outboxStore := events.NewOutboxStore(pool)
	notifySvc := notify.NewService(
		notify.NewPostgresNotificationStore(pool),
		outboxStore,
		users.NewPostgresDirectory(pool),
		logger,
	)

	// Drain the outbox locally so reminder emails leave even when the API
	// process is down.
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		sender = notify.NewStubEmailSender(logger)
	}
	deliverer := events.NewDeliverer(outboxStore, notify.NewEmailDeliveryHandler(sender, nil, logger), nil, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval)
	go deliverer.Start(ctx)

	worker := reminders.NewWorker(apptRepo, notifySvc, nil, logger, cfg.ReminderLookahead)

	logger.Info("reminder worker started", "interval", cfg.ReminderInterval.String())
	worker.RunEvery(ctx, cfg.ReminderInterval)
	logger.Info("reminder worker stopped")
}
