package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge-health/carebridge-platform/internal/appointment"
	"github.com/carebridge-health/carebridge-platform/internal/hospital"
	"github.com/carebridge-health/carebridge-platform/internal/observability/metrics"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

const slotReleaseJobName = "slot_release"

type slotAppointments interface {
	ListPaymentStale(ctx context.Context, cutoff time.Time) ([]appointment.Appointment, error)
	ReleaseSlot(ctx context.Context, id uuid.UUID, from appointment.Status) error
}

type slotResources interface {
	GetByCode(ctx context.Context, hospitalCode string) (*hospital.ResourceConfig, error)
}

type slotProvider interface {
	ReleaseSlot(ctx context.Context, cfg hospital.ResourceConfig, reservationID int64) error
}

// SlotReleaseJob frees provider slot reservations held by abandoned payment
// flows. A record whose external release fails stays eligible and is retried
// on the next tick.
type SlotReleaseJob struct {
	appts     slotAppointments
	resources slotResources
	provider  slotProvider
	logger    *logging.Logger
	metrics   *metrics.ReconcilerMetrics
	olderThan time.Duration
}

// NewSlotReleaseJob creates a slot release job.
func NewSlotReleaseJob(appts slotAppointments, resources slotResources, provider slotProvider, logger *logging.Logger, m *metrics.ReconcilerMetrics) *SlotReleaseJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotReleaseJob{
		appts:     appts,
		resources: resources,
		provider:  provider,
		logger:    logger,
		metrics:   m,
		olderThan: 15 * time.Minute,
	}
}

// WithOlderThan sets how long a payment flow may hold a slot.
func (j *SlotReleaseJob) WithOlderThan(d time.Duration) *SlotReleaseJob {
	if d > 0 {
		j.olderThan = d
	}
	return j
}

func (j *SlotReleaseJob) Name() string { return slotReleaseJobName }

// Run releases one batch of stale reservations.
func (j *SlotReleaseJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.olderThan)
	stale, err := j.appts.ListPaymentStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("slot release: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	j.logger.Info("releasing stale slot reservations", "count", len(stale))
	for i := range stale {
		a := &stale[i]
		if err := j.processOne(ctx, a); err != nil {
			j.metrics.ObserveRecord(slotReleaseJobName, "failed")
			j.logger.Error("slot release failed, will retry next tick",
				"appointment_id", a.ID, "hospital", a.HospitalCode, "error", err)
			continue
		}
		j.metrics.ObserveRecord(slotReleaseJobName, "ok")
	}
	return nil
}

func (j *SlotReleaseJob) processOne(ctx context.Context, a *appointment.Appointment) error {
	decision, err := appointment.Decide(a, appointment.Trigger{Kind: appointment.TriggerSlotRelease})
	if err != nil {
		return err
	}

	cfg, err := j.resources.GetByCode(ctx, a.HospitalCode)
	if err != nil {
		return fmt.Errorf("resolve hospital config: %w", err)
	}
	if cfg == nil {
		return fmt.Errorf("no hospital config for %s", a.HospitalCode)
	}

	if err := j.provider.ReleaseSlot(ctx, *cfg, a.SlotReservationID); err != nil {
		return fmt.Errorf("provider release: %w", err)
	}

	if err := j.appts.ReleaseSlot(ctx, a.ID, a.Status); err != nil {
		return fmt.Errorf("persist release: %w", err)
	}

	j.logger.Info("slot reservation released",
		"appointment_id", a.ID, "hospital", a.HospitalCode,
		"reservation_id", a.SlotReservationID, "next", decision.Next)
	return nil
}
