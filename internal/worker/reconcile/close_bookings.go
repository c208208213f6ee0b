package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge-health/carebridge-platform/internal/appointment"
	"github.com/carebridge-health/carebridge-platform/internal/observability/metrics"
	"github.com/carebridge-health/carebridge-platform/internal/reminder"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

const closeJobName = "close_bookings"

type closeAppointments interface {
	ListOpenScheduled(ctx context.Context) ([]appointment.Appointment, error)
	Close(ctx context.Context, id uuid.UUID, from appointment.Status) error
}

type closeReminders interface {
	Deactivate(ctx context.Context, entityID uuid.UUID, entityType string) error
}

// CloseJob closes appointments whose effective start is long past. Purely
// internal: no network call, so running twice on the same record is a no-op
// once its status leaves the selection filter.
type CloseJob struct {
	appts     closeAppointments
	reminders closeReminders
	logger    *logging.Logger
	metrics   *metrics.ReconcilerMetrics
	after     time.Duration
	now       func() time.Time
}

// NewCloseJob creates a close job.
func NewCloseJob(appts closeAppointments, reminders closeReminders, logger *logging.Logger, m *metrics.ReconcilerMetrics) *CloseJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &CloseJob{
		appts:     appts,
		reminders: reminders,
		logger:    logger,
		metrics:   m,
		after:     600 * time.Minute,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithAfter sets how long past the effective start an appointment closes.
func (j *CloseJob) WithAfter(d time.Duration) *CloseJob {
	if d > 0 {
		j.after = d
	}
	return j
}

func (j *CloseJob) Name() string { return closeJobName }

// Run closes one batch of past appointments.
func (j *CloseJob) Run(ctx context.Context) error {
	open, err := j.appts.ListOpenScheduled(ctx)
	if err != nil {
		return fmt.Errorf("close bookings: %w", err)
	}

	cutoff := j.now().Add(-j.after)
	closed := 0
	for i := range open {
		a := &open[i]
		if !a.EffectiveStart().Before(cutoff) {
			continue
		}
		if err := j.closeOne(ctx, a); err != nil {
			j.metrics.ObserveRecord(closeJobName, "failed")
			j.logger.Error("close failed", "appointment_id", a.ID, "error", err)
			continue
		}
		j.metrics.ObserveRecord(closeJobName, "ok")
		closed++
	}
	if closed > 0 {
		j.logger.Info("closed past appointments", "count", closed)
	}
	return nil
}

func (j *CloseJob) closeOne(ctx context.Context, a *appointment.Appointment) error {
	decision, err := appointment.Decide(a, appointment.Trigger{Kind: appointment.TriggerClose})
	if err != nil {
		return err
	}

	if err := j.appts.Close(ctx, a.ID, a.Status); err != nil {
		return err
	}

	if decision.DeactivateReminder {
		if err := j.reminders.Deactivate(ctx, a.ID, reminder.EntityTypeAppointment); err != nil {
			// The appointment is already closed; a stale reminder is only
			// noise, so log and move on.
			j.logger.Warn("reminder deactivation failed", "appointment_id", a.ID, "error", err)
		}
	}
	return nil
}
