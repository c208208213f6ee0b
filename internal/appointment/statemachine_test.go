package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduledAppointment() *Appointment {
	tod := "10:00"
	return &Appointment{
		Status:            StatusScheduled,
		AppointmentDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AppointmentTime:   &tod,
		VideoConsultation: true,
	}
}

func TestDecideSlotRelease(t *testing.T) {
	for _, from := range []Status{StatusPaymentPending, StatusPaymentFailed} {
		a := &Appointment{Status: from, SlotReservationID: 42}
		d, err := Decide(a, Trigger{Kind: TriggerSlotRelease})
		require.NoError(t, err)
		assert.Equal(t, StatusDraft, d.Next)
		assert.True(t, d.ReleaseSlot)
	}
}

func TestDecideSlotReleaseWrongState(t *testing.T) {
	a := &Appointment{Status: StatusScheduled}
	_, err := Decide(a, Trigger{Kind: TriggerSlotRelease})
	assert.Error(t, err)
}

func TestDecideClose(t *testing.T) {
	for _, from := range []Status{StatusScheduled, StatusRescheduled, StatusStarted} {
		a := &Appointment{Status: from}
		d, err := Decide(a, Trigger{Kind: TriggerClose})
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, d.Next)
		assert.True(t, d.DeactivateReminder)
	}
}

func TestDecideCloseWrongState(t *testing.T) {
	for _, from := range []Status{StatusDraft, StatusClosed, StatusCancelled} {
		a := &Appointment{Status: from}
		_, err := Decide(a, Trigger{Kind: TriggerClose})
		assert.Error(t, err, "from %s", from)
	}
}

func TestDecideExternalCancelled(t *testing.T) {
	in := &ExternalUpdate{Status: ExternalStatusCancelled, AppointmentDate: "2024-01-01"}

	// With no local record the decision describes a CANCELLED insert.
	d, err := Decide(nil, Trigger{Kind: TriggerExternal, External: in})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, d.Next)

	d, err = Decide(scheduledAppointment(), Trigger{Kind: TriggerExternal, External: in})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, d.Next)
}

func TestDecideExternalConfirmedUnchanged(t *testing.T) {
	a := scheduledAppointment()
	tod := "10:00"
	in := &ExternalUpdate{
		Status:            ExternalStatusConfirmed,
		AppointmentDate:   "2024-01-01",
		AppointmentTime:   &tod,
		VideoConsultation: true,
	}

	d, err := Decide(a, Trigger{Kind: TriggerExternal, External: in})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, d.Next)
	require.NotNil(t, d.SyncExternal)
}

func TestDecideExternalConfirmedUnchangedFromRescheduled(t *testing.T) {
	a := scheduledAppointment()
	a.Status = StatusRescheduled
	tod := "10:00"
	in := &ExternalUpdate{
		Status:            ExternalStatusConfirmed,
		AppointmentDate:   "2024-01-01",
		AppointmentTime:   &tod,
		VideoConsultation: true,
	}

	// Returns to SCHEDULED, not RE_SCHEDULED, when nothing moved.
	d, err := Decide(a, Trigger{Kind: TriggerExternal, External: in})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, d.Next)
}

func TestDecideExternalConfirmedChanged(t *testing.T) {
	tod := "10:00"
	moved := "11:30"
	otherDay := "2024-01-02"

	tests := []struct {
		name string
		in   ExternalUpdate
	}{
		{"time moved", ExternalUpdate{Status: 2, AppointmentDate: "2024-01-01", AppointmentTime: &moved, VideoConsultation: true}},
		{"date moved", ExternalUpdate{Status: 2, AppointmentDate: otherDay, AppointmentTime: &tod, VideoConsultation: true}},
		{"video flag flipped", ExternalUpdate{Status: 2, AppointmentDate: "2024-01-01", AppointmentTime: &tod, VideoConsultation: false}},
		{"time dropped", ExternalUpdate{Status: 2, AppointmentDate: "2024-01-01", AppointmentTime: nil, VideoConsultation: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(scheduledAppointment(), Trigger{Kind: TriggerExternal, External: &tt.in})
			require.NoError(t, err)
			assert.Equal(t, StatusRescheduled, d.Next)
		})
	}
}

func TestDecideExternalConfirmedNewRecord(t *testing.T) {
	tod := "09:15"
	in := &ExternalUpdate{Status: ExternalStatusConfirmed, AppointmentDate: "2024-03-05", AppointmentTime: &tod}

	d, err := Decide(nil, Trigger{Kind: TriggerExternal, External: in})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, d.Next)
}

func TestDecideExternalUnknownCode(t *testing.T) {
	in := &ExternalUpdate{Status: 7}
	_, err := Decide(scheduledAppointment(), Trigger{Kind: TriggerExternal, External: in})
	assert.Error(t, err)
}

func TestDecideUnknownTrigger(t *testing.T) {
	_, err := Decide(scheduledAppointment(), Trigger{Kind: "reopen"})
	assert.Error(t, err)
}
