package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge-health/carebridge-platform/internal/appointment"
)

type fakeReminderAppointments struct {
	consultations []appointment.Appointment
	err           error
}

func (f *fakeReminderAppointments) ListVideoConsultations(ctx context.Context) ([]appointment.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.consultations, nil
}

type fakeSMS struct {
	sent []string // recipient phone numbers in send order
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, phone, text, hospitalCode string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, phone)
	return `{"status":"queued"}`, nil
}

type memDedup struct {
	keys map[string]bool
	err  error
}

func (m *memDedup) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memDedup) Release(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func videoConsultation(date time.Time, tod string) appointment.Appointment {
	return appointment.Appointment{
		ID:                uuid.New(),
		Status:            appointment.StatusScheduled,
		HospitalCode:      "H1",
		DoctorID:          "doc-1",
		DoctorName:        "Dr. Adams",
		DoctorPhone:       "+15550002222",
		PatientName:       "Pat Doe",
		AppointmentDate:   date,
		AppointmentTime:   &tod,
		VideoConsultation: true,
	}
}

func TestVideoReminderInsideWindow(t *testing.T) {
	a := videoConsultation(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "10:00")
	store := &fakeReminderAppointments{consultations: []appointment.Appointment{a}}
	sms := &fakeSMS{}

	job := NewVideoReminderJob(store, sms, &memDedup{}, nil, nil)
	job.now = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"+15550002222"}, sms.sent)
}

func TestVideoReminderOutsideWindow(t *testing.T) {
	a := videoConsultation(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "10:00")
	store := &fakeReminderAppointments{consultations: []appointment.Appointment{a}}

	tests := []struct {
		name string
		now  time.Time
	}{
		{"before start", time.Date(2024, 1, 1, 9, 59, 59, 0, time.UTC)},
		{"window elapsed", time.Date(2024, 1, 1, 10, 1, 20, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sms := &fakeSMS{}
			job := NewVideoReminderJob(store, sms, &memDedup{}, nil, nil)
			job.now = func() time.Time { return tt.now }

			require.NoError(t, job.Run(context.Background()))
			assert.Empty(t, sms.sent)
		})
	}
}

func TestVideoReminderDedupSuppressesSecondTick(t *testing.T) {
	a := videoConsultation(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "10:00")
	store := &fakeReminderAppointments{consultations: []appointment.Appointment{a}}
	sms := &fakeSMS{}
	dedup := &memDedup{}

	job := NewVideoReminderJob(store, sms, dedup, nil, nil)
	job.now = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 10, 0, time.UTC) }
	require.NoError(t, job.Run(context.Background()))

	// Second tick 50 seconds later, still inside the 70s window.
	job.now = func() time.Time { return time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC) }
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, sms.sent, 1, "dedup guard must suppress the duplicate reminder")
}

func TestVideoReminderNotifiesHospitalContact(t *testing.T) {
	a := videoConsultation(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "10:00")
	a.HospitalContact = "+15550009999"
	store := &fakeReminderAppointments{consultations: []appointment.Appointment{a}}
	sms := &fakeSMS{}

	job := NewVideoReminderJob(store, sms, &memDedup{}, nil, nil)
	job.now = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"+15550002222", "+15550009999"}, sms.sent)
}

func TestVideoReminderSendFailureReleasesMarker(t *testing.T) {
	a := videoConsultation(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "10:00")
	store := &fakeReminderAppointments{consultations: []appointment.Appointment{a}}
	dedup := &memDedup{}

	job := NewVideoReminderJob(store, &fakeSMS{err: errors.New("carrier down")}, dedup, nil, nil)
	job.now = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 10, 0, time.UTC) }
	require.NoError(t, job.Run(context.Background()))

	// Marker released: the next tick inside the window may retry.
	sms := &fakeSMS{}
	job2 := NewVideoReminderJob(store, sms, dedup, nil, nil)
	job2.now = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 40, 0, time.UTC) }
	require.NoError(t, job2.Run(context.Background()))
	assert.Len(t, sms.sent, 1)
}

func TestRedisDedup(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	dedup := NewRedisDedup(client)
	ctx := context.Background()

	ok, err := dedup.Acquire(ctx, "appt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dedup.Acquire(ctx, "appt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, dedup.Release(ctx, "appt-1"))
	ok, err = dedup.Acquire(ctx, "appt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// TTL expiry re-opens the marker.
	mr.FastForward(2 * time.Minute)
	ok, err = dedup.Acquire(ctx, "appt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
