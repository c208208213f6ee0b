package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge-health/carebridge-platform/internal/appointment"
	"github.com/carebridge-health/carebridge-platform/internal/hospital"
)

type fakeSyncResources struct {
	configs  []hospital.ResourceConfig
	mappings map[string]*hospital.PatientMapping // keyed by external patient id
	err      error
}

func (f *fakeSyncResources) ListActive(ctx context.Context) ([]hospital.ResourceConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.configs, nil
}

func (f *fakeSyncResources) LookupPatientMapping(ctx context.Context, hospitalCode, externalPatientID string) (*hospital.PatientMapping, error) {
	return f.mappings[externalPatientID], nil
}

type fakeSyncProvider struct {
	bookings map[string][]hospital.InboundBooking // keyed by hospital code
	fetchErr map[string]error
	ackErr   error
	acked    []int64
}

func (f *fakeSyncProvider) FetchPendingBookings(ctx context.Context, cfg hospital.ResourceConfig) ([]hospital.InboundBooking, error) {
	if err := f.fetchErr[cfg.HospitalCode]; err != nil {
		return nil, err
	}
	return f.bookings[cfg.HospitalCode], nil
}

func (f *fakeSyncProvider) AcknowledgeBooking(ctx context.Context, cfg hospital.ResourceConfig, appointmentID int64) error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, appointmentID)
	return nil
}

type fakeSyncAppointments struct {
	existing map[int64]*appointment.Appointment // keyed by external id
	upserts  []appointment.Appointment
	findErr  error
}

func (f *fakeSyncAppointments) FindByProviderKey(ctx context.Context, hospitalCode string, externalID int64) (*appointment.Appointment, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.existing[externalID], nil
}

func (f *fakeSyncAppointments) UpsertFromProvider(ctx context.Context, a *appointment.Appointment) (bool, error) {
	f.upserts = append(f.upserts, *a)
	_, exists := f.existing[*a.ExternalID]
	return !exists, nil
}

func syncConfig() hospital.ResourceConfig {
	return hospital.ResourceConfig{
		HospitalCode: "H1",
		HospitalID:   "hosp-1",
		HospitalName: "General",
		ContactPhone: "+15550001111",
		Active:       true,
	}
}

func inboundBooking(externalID int64, status int) hospital.InboundBooking {
	tod := "14:30"
	return hospital.InboundBooking{
		AppointmentID:     externalID,
		AppointmentStatus: status,
		PatientID:         "ext-pat-1",
		PatientName:       "Pat Doe",
		DoctorID:          "doc-1",
		DoctorName:        "Dr. Adams",
		DoctorPhone:       "+15550002222",
		AppointmentDate:   "2024-03-10",
		AppointmentTime:   &tod,
	}
}

func TestExternalSyncInsertsNewBooking(t *testing.T) {
	resources := &fakeSyncResources{
		configs: []hospital.ResourceConfig{syncConfig()},
		mappings: map[string]*hospital.PatientMapping{
			"ext-pat-1": {UserID: "user-1", FamilyMemberID: "fam-1"},
		},
	}
	provider := &fakeSyncProvider{
		bookings: map[string][]hospital.InboundBooking{"H1": {inboundBooking(9001, 2)}},
	}
	appts := &fakeSyncAppointments{}

	job := NewExternalSyncJob(resources, provider, appts, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, appts.upserts, 1)
	got := appts.upserts[0]
	assert.Equal(t, appointment.StatusScheduled, got.Status)
	assert.Equal(t, int64(9001), *got.ExternalID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "fam-1", got.FamilyMemberID)
	assert.Equal(t, "+15550001111", got.HospitalContact)
	assert.True(t, got.Active)
	assert.True(t, got.HospitalBooking)
	assert.Equal(t, []int64{9001}, provider.acked)
}

func TestExternalSyncCancellationWithoutLocalRecord(t *testing.T) {
	resources := &fakeSyncResources{
		configs: []hospital.ResourceConfig{syncConfig()},
		mappings: map[string]*hospital.PatientMapping{
			"ext-pat-1": {UserID: "user-1", FamilyMemberID: "fam-1"},
		},
	}
	provider := &fakeSyncProvider{
		bookings: map[string][]hospital.InboundBooking{"H1": {inboundBooking(9002, -1)}},
	}
	appts := &fakeSyncAppointments{}

	job := NewExternalSyncJob(resources, provider, appts, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	// A cancellation for an unseen booking still materializes locally, as
	// CANCELLED, so the history is preserved.
	require.Len(t, appts.upserts, 1)
	assert.Equal(t, appointment.StatusCancelled, appts.upserts[0].Status)
}

func TestExternalSyncRescheduleDetection(t *testing.T) {
	existingTime := "09:00"
	existing := &appointment.Appointment{
		ID:              uuid.New(),
		Status:          appointment.StatusScheduled,
		AppointmentDate: mustDate(t, "2024-03-10"),
		AppointmentTime: &existingTime,
	}

	tests := []struct {
		name     string
		booking  hospital.InboundBooking
		expected appointment.Status
	}{
		{
			name: "changed time",
			booking: func() hospital.InboundBooking {
				b := inboundBooking(9003, 2)
				return b
			}(),
			expected: appointment.StatusRescheduled,
		},
		{
			name: "unchanged details",
			booking: func() hospital.InboundBooking {
				b := inboundBooking(9003, 2)
				b.AppointmentTime = &existingTime
				return b
			}(),
			expected: appointment.StatusScheduled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resources := &fakeSyncResources{
				configs: []hospital.ResourceConfig{syncConfig()},
				mappings: map[string]*hospital.PatientMapping{
					"ext-pat-1": {UserID: "user-1", FamilyMemberID: "fam-1"},
				},
			}
			provider := &fakeSyncProvider{
				bookings: map[string][]hospital.InboundBooking{"H1": {tt.booking}},
			}
			appts := &fakeSyncAppointments{
				existing: map[int64]*appointment.Appointment{9003: existing},
			}

			job := NewExternalSyncJob(resources, provider, appts, nil, nil)
			require.NoError(t, job.Run(context.Background()))

			require.Len(t, appts.upserts, 1)
			assert.Equal(t, tt.expected, appts.upserts[0].Status)
			assert.Equal(t, existing.ID, appts.upserts[0].ID, "existing record keeps its id")
		})
	}
}

func TestExternalSyncSkipsWithoutPatientMapping(t *testing.T) {
	resources := &fakeSyncResources{
		configs:  []hospital.ResourceConfig{syncConfig()},
		mappings: map[string]*hospital.PatientMapping{},
	}
	provider := &fakeSyncProvider{
		bookings: map[string][]hospital.InboundBooking{"H1": {inboundBooking(9004, 2)}},
	}
	appts := &fakeSyncAppointments{}

	job := NewExternalSyncJob(resources, provider, appts, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, appts.upserts)
	assert.Empty(t, provider.acked, "skipped bookings stay unacknowledged")
}

func TestExternalSyncSkipsUnknownStatusAndMalformedDate(t *testing.T) {
	unknown := inboundBooking(9005, 7)
	badDate := inboundBooking(9006, 2)
	badDate.AppointmentDate = "10/03/2024"

	resources := &fakeSyncResources{
		configs: []hospital.ResourceConfig{syncConfig()},
		mappings: map[string]*hospital.PatientMapping{
			"ext-pat-1": {UserID: "user-1", FamilyMemberID: "fam-1"},
		},
	}
	provider := &fakeSyncProvider{
		bookings: map[string][]hospital.InboundBooking{"H1": {unknown, badDate}},
	}
	appts := &fakeSyncAppointments{}

	job := NewExternalSyncJob(resources, provider, appts, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, appts.upserts)
}

func TestExternalSyncAckFailureKeepsUpsert(t *testing.T) {
	resources := &fakeSyncResources{
		configs: []hospital.ResourceConfig{syncConfig()},
		mappings: map[string]*hospital.PatientMapping{
			"ext-pat-1": {UserID: "user-1", FamilyMemberID: "fam-1"},
		},
	}
	provider := &fakeSyncProvider{
		bookings: map[string][]hospital.InboundBooking{"H1": {inboundBooking(9007, 2)}},
		ackErr:   errors.New("provider 500"),
	}
	appts := &fakeSyncAppointments{}

	job := NewExternalSyncJob(resources, provider, appts, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	// The upsert landed; the provider will simply re-offer the item.
	assert.Len(t, appts.upserts, 1)
}

func TestExternalSyncFetchFailureIsolatedPerHospital(t *testing.T) {
	cfgB := syncConfig()
	cfgB.HospitalCode = "H2"

	resources := &fakeSyncResources{
		configs: []hospital.ResourceConfig{syncConfig(), cfgB},
		mappings: map[string]*hospital.PatientMapping{
			"ext-pat-1": {UserID: "user-1", FamilyMemberID: "fam-1"},
		},
	}
	provider := &fakeSyncProvider{
		bookings: map[string][]hospital.InboundBooking{"H2": {inboundBooking(9008, 2)}},
		fetchErr: map[string]error{"H1": errors.New("timeout")},
	}
	appts := &fakeSyncAppointments{}

	job := NewExternalSyncJob(resources, provider, appts, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, appts.upserts, 1)
	assert.Equal(t, "H2", appts.upserts[0].HospitalCode)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return parsed
}
