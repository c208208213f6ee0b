package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge-health/carebridge-platform/internal/appointment"
	"github.com/carebridge-health/carebridge-platform/internal/observability/metrics"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

const reminderJobName = "consult_reminder"

type reminderAppointments interface {
	ListVideoConsultations(ctx context.Context) ([]appointment.Appointment, error)
}

type smsSender interface {
	SendSMS(ctx context.Context, phone, text, hospitalCode string) (string, error)
}

type reminderDedup interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// VideoReminderJob nudges the doctor (and the hospital contact, when one is
// recorded) when a paid video consultation has reached its start time. The
// action is side-effect only: no appointment state changes. The dedup guard
// keeps a second tick inside the same eligibility window from re-sending.
type VideoReminderJob struct {
	appts    reminderAppointments
	sms      smsSender
	dedup    reminderDedup
	logger   *logging.Logger
	metrics  *metrics.ReconcilerMetrics
	window   time.Duration
	dedupTTL time.Duration
	now      func() time.Time
}

// NewVideoReminderJob creates a consultation reminder job.
func NewVideoReminderJob(appts reminderAppointments, sms smsSender, dedup reminderDedup, logger *logging.Logger, m *metrics.ReconcilerMetrics) *VideoReminderJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &VideoReminderJob{
		appts:    appts,
		sms:      sms,
		dedup:    dedup,
		logger:   logger,
		metrics:  m,
		window:   70 * time.Second,
		dedupTTL: 5 * time.Minute,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithWindow sets the eligibility window after the effective start.
func (j *VideoReminderJob) WithWindow(d time.Duration) *VideoReminderJob {
	if d > 0 {
		j.window = d
	}
	return j
}

// WithDedupTTL sets how long the send-once marker is held.
func (j *VideoReminderJob) WithDedupTTL(d time.Duration) *VideoReminderJob {
	if d > 0 {
		j.dedupTTL = d
	}
	return j
}

func (j *VideoReminderJob) Name() string { return reminderJobName }

// Run sends reminders for consultations inside the start window.
func (j *VideoReminderJob) Run(ctx context.Context) error {
	consultations, err := j.appts.ListVideoConsultations(ctx)
	if err != nil {
		return fmt.Errorf("consult reminder: %w", err)
	}

	now := j.now()
	for i := range consultations {
		a := &consultations[i]
		start := a.EffectiveStart()
		if now.Before(start) || !now.Before(start.Add(j.window)) {
			continue
		}
		if err := j.remindOne(ctx, a); err != nil {
			j.metrics.ObserveRecord(reminderJobName, "failed")
			j.logger.Error("consult reminder failed", "appointment_id", a.ID, "error", err)
			continue
		}
	}
	return nil
}

func (j *VideoReminderJob) remindOne(ctx context.Context, a *appointment.Appointment) error {
	if a.DoctorPhone == "" {
		j.metrics.ObserveRecord(reminderJobName, "skipped")
		j.logger.Warn("consult reminder skipped: no doctor phone", "appointment_id", a.ID)
		return nil
	}

	key := a.ID.String()
	acquired, err := j.dedup.Acquire(ctx, key, j.dedupTTL)
	if err != nil {
		// Guard unavailable: sending twice beats never sending.
		j.logger.Warn("dedup guard unavailable, sending anyway", "appointment_id", a.ID, "error", err)
		acquired = true
	}
	if !acquired {
		j.metrics.ObserveRecord(reminderJobName, "skipped")
		return nil
	}

	text := fmt.Sprintf("Video consultation for %s has started and the patient is waiting. Please join now.", a.PatientName)
	if _, err := j.sms.SendSMS(ctx, a.DoctorPhone, text, a.HospitalCode); err != nil {
		if relErr := j.dedup.Release(ctx, key); relErr != nil {
			j.logger.Warn("failed to release dedup marker", "appointment_id", a.ID, "error", relErr)
		}
		return fmt.Errorf("sms doctor: %w", err)
	}

	if a.HospitalContact != "" {
		contactText := fmt.Sprintf("Doctor %s has not joined the video consultation for patient %s.", a.DoctorName, a.PatientName)
		if _, err := j.sms.SendSMS(ctx, a.HospitalContact, contactText, a.HospitalCode); err != nil {
			// The doctor nudge already went out; don't fail the record.
			j.logger.Warn("sms hospital contact failed", "appointment_id", a.ID, "error", err)
		}
	}

	j.metrics.ObserveRecord(reminderJobName, "ok")
	j.logger.Info("consult reminder sent", "appointment_id", a.ID, "doctor", a.DoctorID)
	return nil
}
