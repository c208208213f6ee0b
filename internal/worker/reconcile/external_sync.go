package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge-health/carebridge-platform/internal/appointment"
	"github.com/carebridge-health/carebridge-platform/internal/hospital"
	"github.com/carebridge-health/carebridge-platform/internal/observability/metrics"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

const externalSyncJobName = "external_sync"

type syncResources interface {
	ListActive(ctx context.Context) ([]hospital.ResourceConfig, error)
	LookupPatientMapping(ctx context.Context, hospitalCode, externalPatientID string) (*hospital.PatientMapping, error)
}

type syncProvider interface {
	FetchPendingBookings(ctx context.Context, cfg hospital.ResourceConfig) ([]hospital.InboundBooking, error)
	AcknowledgeBooking(ctx context.Context, cfg hospital.ResourceConfig, appointmentID int64) error
}

type syncAppointments interface {
	FindByProviderKey(ctx context.Context, hospitalCode string, externalID int64) (*appointment.Appointment, error)
	UpsertFromProvider(ctx context.Context, a *appointment.Appointment) (bool, error)
}

// ExternalSyncJob pulls call-center bookings from each hospital's provider
// queue and reconciles them into local appointments. Convergence relies on
// the natural-key upsert and the provider re-offering unacknowledged items;
// nothing here is transactional.
type ExternalSyncJob struct {
	resources syncResources
	provider  syncProvider
	appts     syncAppointments
	logger    *logging.Logger
	metrics   *metrics.ReconcilerMetrics
}

// NewExternalSyncJob creates an external booking sync job.
func NewExternalSyncJob(resources syncResources, provider syncProvider, appts syncAppointments, logger *logging.Logger, m *metrics.ReconcilerMetrics) *ExternalSyncJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &ExternalSyncJob{
		resources: resources,
		provider:  provider,
		appts:     appts,
		logger:    logger,
		metrics:   m,
	}
}

func (j *ExternalSyncJob) Name() string { return externalSyncJobName }

// Run syncs every active hospital's pending queue.
func (j *ExternalSyncJob) Run(ctx context.Context) error {
	configs, err := j.resources.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("external sync: %w", err)
	}

	for _, cfg := range configs {
		bookings, err := j.provider.FetchPendingBookings(ctx, cfg)
		if err != nil {
			j.logger.Error("fetch pending bookings failed", "hospital", cfg.HospitalCode, "error", err)
			continue
		}
		for i := range bookings {
			b := &bookings[i]
			if err := j.syncOne(ctx, cfg, b); err != nil {
				j.metrics.ObserveRecord(externalSyncJobName, "failed")
				j.logger.Error("booking sync failed",
					"hospital", cfg.HospitalCode, "external_id", b.AppointmentID, "error", err)
			}
		}
	}
	return nil
}

func (j *ExternalSyncJob) syncOne(ctx context.Context, cfg hospital.ResourceConfig, b *hospital.InboundBooking) error {
	mapping, err := j.resources.LookupPatientMapping(ctx, cfg.HospitalCode, b.PatientID)
	if err != nil {
		return fmt.Errorf("mapping lookup: %w", err)
	}
	if mapping == nil {
		// No fabricated family members: skip and let a later tick pick the
		// record up once the mapping exists.
		j.metrics.ObserveRecord(externalSyncJobName, "skipped")
		j.logger.Warn("no patient mapping, skipping booking",
			"hospital", cfg.HospitalCode, "external_patient_id", b.PatientID, "external_id", b.AppointmentID)
		return nil
	}

	date, err := time.Parse("2006-01-02", b.AppointmentDate)
	if err != nil {
		j.metrics.ObserveRecord(externalSyncJobName, "skipped")
		j.logger.Warn("malformed booking date, skipping",
			"hospital", cfg.HospitalCode, "external_id", b.AppointmentID, "date", b.AppointmentDate)
		return nil
	}

	local, err := j.appts.FindByProviderKey(ctx, cfg.HospitalCode, b.AppointmentID)
	if err != nil {
		return fmt.Errorf("find local record: %w", err)
	}

	decision, err := appointment.Decide(local, appointment.Trigger{
		Kind: appointment.TriggerExternal,
		External: &appointment.ExternalUpdate{
			Status:            b.AppointmentStatus,
			AppointmentDate:   b.AppointmentDate,
			AppointmentTime:   b.AppointmentTime,
			VideoConsultation: b.VideoConsultation,
		},
	})
	if err != nil {
		j.metrics.ObserveRecord(externalSyncJobName, "skipped")
		j.logger.Warn("undecidable external booking, skipping",
			"hospital", cfg.HospitalCode, "external_id", b.AppointmentID,
			"external_status", b.AppointmentStatus, "error", err)
		return nil
	}

	externalID := b.AppointmentID
	record := &appointment.Appointment{
		ExternalID:        &externalID,
		Status:            decision.Next,
		HospitalCode:      cfg.HospitalCode,
		HospitalID:        cfg.HospitalID,
		HospitalName:      cfg.HospitalName,
		HospitalContact:   cfg.ContactPhone,
		DoctorID:          b.DoctorID,
		DoctorName:        b.DoctorName,
		DoctorPhone:       b.DoctorPhone,
		PatientID:         b.PatientID,
		PatientName:       b.PatientName,
		FamilyMemberID:    mapping.FamilyMemberID,
		UserID:            mapping.UserID,
		AppointmentDate:   date,
		AppointmentTime:   b.AppointmentTime,
		VideoConsultation: b.VideoConsultation,
		Active:            true,
		HospitalBooking:   true,
	}
	if local != nil {
		record.ID = local.ID
	}

	inserted, err := j.appts.UpsertFromProvider(ctx, record)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	// Ack failures are left alone: the provider re-offers the item and the
	// upsert is idempotent on its natural key.
	if err := j.provider.AcknowledgeBooking(ctx, cfg, b.AppointmentID); err != nil {
		j.logger.Warn("booking acknowledgement failed, provider will re-offer",
			"hospital", cfg.HospitalCode, "external_id", b.AppointmentID, "error", err)
	}

	j.metrics.ObserveRecord(externalSyncJobName, "ok")
	j.logger.Info("external booking synced",
		"hospital", cfg.HospitalCode, "external_id", b.AppointmentID,
		"status", decision.Next, "inserted", inserted)
	return nil
}
