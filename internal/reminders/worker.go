// Package reminders implements the periodic scan that sends 24 hour and
// 1 hour session reminders to both appointment participants.
package reminders

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	"github.com/smartwell-la/smartwell-platform/internal/observability/metrics"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

var remindersTracer = otel.Tracer("smartwell.internal.reminders")

// Reminder timing bands. A reminder fires while the time until session
// start falls inside its band, wide enough that a scan every 30 minutes
// cannot skip over it.
const (
	band24hMin = 23*time.Hour + 30*time.Minute
	band24hMax = 24*time.Hour + 30*time.Minute
	band1hMin  = 45 * time.Minute
	band1hMax  = 75 * time.Minute
)

// Dispatcher fans a reminder out to both participants. Satisfied by
// *notify.Service.
type Dispatcher interface {
	SessionReminder(ctx context.Context, a *appointments.Appointment, band appointments.ReminderBand) error
}

// Report summarizes one scan run.
type Report struct {
	Checked int `json:"checked"`
	Sent24h int `json:"sent24h"`
	Sent1h  int `json:"sent1h"`
	Errors  int `json:"errors"`
}

// Worker scans upcoming confirmed appointments and dispatches due
// reminders. Safe to run concurrently with itself: the persisted sent
// flags are claimed atomically, so overlapping runs never double-send.
type Worker struct {
	repo       appointments.Repository
	dispatcher Dispatcher
	metrics    *metrics.PlatformMetrics
	logger     *logging.Logger
	lookahead  time.Duration
	now        func() time.Time
}

// NewWorker creates a reminder worker. lookahead bounds the coarse
// fetch window and must cover the widest band.
func NewWorker(repo appointments.Repository, dispatcher Dispatcher, m *metrics.PlatformMetrics, logger *logging.Logger, lookahead time.Duration) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if lookahead < band24hMax {
		lookahead = 25 * time.Hour
	}
	return &Worker{
		repo:       repo,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		lookahead:  lookahead,
		now:        time.Now,
	}
}

// WithClock overrides the time source, used in tests.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// Run performs one scan. Per-appointment failures are counted and
// skipped so one bad record never starves the rest of the batch.
func (w *Worker) Run(ctx context.Context) (Report, error) {
	ctx, span := remindersTracer.Start(ctx, "reminders.run")
	defer span.End()

	now := w.now().UTC()
	// The window is by calendar date: sessions later today through the
	// 24h band tomorrow. Exact timing is decided per appointment below.
	from := now.Truncate(24 * time.Hour)
	to := now.Add(w.lookahead)

	candidates, err := w.repo.ListInWindow(ctx, from, to, []appointments.Status{appointments.StatusConfirmed})
	if err != nil {
		span.RecordError(err)
		return Report{}, err
	}

	var report Report
	report.Checked = len(candidates)
	for _, a := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		start, err := a.SessionStart()
		if err != nil {
			w.logger.Error("skipping appointment with invalid session time",
				"appointment_id", a.ID, "error", err)
			report.Errors++
			continue
		}
		until := start.Sub(now)

		if until >= band24hMin && until <= band24hMax && !a.Reminders.Sent24h {
			w.send(ctx, a, appointments.Band24h, now, &report)
		}
		if until >= band1hMin && until <= band1hMax && !a.Reminders.Sent1h {
			w.send(ctx, a, appointments.Band1h, now, &report)
		}
	}

	span.SetAttributes(
		attribute.Int("smartwell.reminders_checked", report.Checked),
		attribute.Int("smartwell.reminders_sent_24h", report.Sent24h),
		attribute.Int("smartwell.reminders_sent_1h", report.Sent1h),
		attribute.Int("smartwell.reminder_errors", report.Errors),
	)
	w.logger.Info("reminder scan complete",
		"checked", report.Checked, "sent_24h", report.Sent24h,
		"sent_1h", report.Sent1h, "errors", report.Errors)
	return report, nil
}

// send claims the band's flag first and only then dispatches. If the
// claim reports the flag was already set, another run got there first
// and this one stays silent.
func (w *Worker) send(ctx context.Context, a *appointments.Appointment, band appointments.ReminderBand, now time.Time, report *Report) {
	claimed, err := w.repo.MarkReminderSent(ctx, a.ID, band, now)
	if err != nil {
		w.logger.Error("failed to claim reminder flag",
			"appointment_id", a.ID, "band", band, "error", err)
		report.Errors++
		return
	}
	if !claimed {
		return
	}

	if err := w.dispatcher.SessionReminder(ctx, a, band); err != nil {
		// The flag stays set: a reminder that half-dispatched is better
		// than one that repeats on every scan.
		w.logger.Error("reminder dispatch failed",
			"appointment_id", a.ID, "band", band, "error", err)
		report.Errors++
		return
	}

	w.metrics.ObserveReminderSent(string(band))
	switch band {
	case appointments.Band24h:
		report.Sent24h++
	case appointments.Band1h:
		report.Sent1h++
	}
}

// RunEvery runs scans on an interval until the context is cancelled.
// Used by the standalone worker binary and the in-process ticker.
func (w *Worker) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Run(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("reminder scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
