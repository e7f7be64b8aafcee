package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartwell-la/smartwell-platform/internal/api/router"
	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	"github.com/smartwell-la/smartwell-platform/internal/audit"
	appconfig "github.com/smartwell-la/smartwell-platform/internal/config"
	"github.com/smartwell-la/smartwell-platform/internal/events"
	httpmiddleware "github.com/smartwell-la/smartwell-platform/internal/http/middleware"
	"github.com/smartwell-la/smartwell-platform/internal/notify"
	"github.com/smartwell-la/smartwell-platform/internal/observability/metrics"
	"github.com/smartwell-la/smartwell-platform/internal/professionals"
	"github.com/smartwell-la/smartwell-platform/internal/reminders"
	"github.com/smartwell-la/smartwell-platform/internal/reviews"
	"github.com/smartwell-la/smartwell-platform/internal/rooms"
	"github.com/smartwell-la/smartwell-platform/internal/users"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

func main() {
	// Load .env when present, for local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting smartwell-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres (pgx pool for repositories, database/sql for the audit log)
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	auditDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit database", "error", err)
		os.Exit(1)
	}
	defer auditDB.Close()

	// Redis backs the one-time session room tokens.
	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	platformMetrics := metrics.NewPlatformMetrics(reg)

	// Repositories
	apptRepo := appointments.NewPostgresRepository(pool)
	proRepo := professionals.NewPostgresRepository(pool)
	reviewRepo := reviews.NewPostgresRepository(pool)
	notifStore := notify.NewPostgresNotificationStore(pool)
	userDir := users.NewPostgresDirectory(pool)
	outboxStore := events.NewOutboxStore(pool)
	auditSvc := audit.NewService(auditDB)

	// Notifications: in-app records are written synchronously, emails go
	// through the outbox and are drained by a background deliverer.
	notifySvc := notify.NewService(notifStore, outboxStore, userDir, logger)
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails will be logged only")
		sender = notify.NewStubEmailSender(logger)
	}
	deliverer := events.NewDeliverer(outboxStore, notify.NewEmailDeliveryHandler(sender, platformMetrics, logger), platformMetrics, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval)
	go deliverer.Start(ctx)

	// Services
	apptSvc := appointments.NewService(apptRepo, notifySvc, platformMetrics, cfg.CancellationWindow, logger)
	proSvc := professionals.NewService(proRepo, auditSvc, logger)
	reviewSvc := reviews.NewService(reviewRepo, apptRepo, auditSvc, logger)

	// Session rooms
	tokens := rooms.NewTokenStore(rdb, cfg.RoomTokenTTL)
	hub := rooms.NewHub(logger)

	// Reminder worker, triggered by the cron endpoint and optionally by an
	// in-process ticker for deployments without an external scheduler.
	worker := reminders.NewWorker(apptRepo, notifySvc, platformMetrics, logger, cfg.ReminderLookahead)
	if cfg.RunReminderTicker {
		go worker.RunEvery(ctx, cfg.ReminderInterval)
	}

	// Setup router
	var origins []string
	if cfg.CORSAllowedOrigins != "" {
		origins = splitOrigins(cfg.CORSAllowedOrigins)
	}
	r := router.New(&router.Config{
		Logger:               logger,
		ProfessionalsHandler: professionals.NewHandler(proSvc, logger),
		AppointmentsHandler:  appointments.NewHandler(apptSvc, auditSvc, logger),
		ReviewsHandler:       reviews.NewHandler(reviewSvc, logger),
		NotificationsHandler: notify.NewHandler(notifStore, logger),
		RoomsHandler:         rooms.NewHandler(tokens, hub, apptRepo, logger),
		RemindersHandler:     reminders.NewHandler(worker, cfg.CronSecret, logger),
		RateLimiter:          httpmiddleware.NewRateLimiter(platformMetrics),
		JWTSecret:            cfg.JWTSecret,
		MetricsHandler:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:   origins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
