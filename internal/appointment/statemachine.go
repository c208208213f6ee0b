package appointment

import "fmt"

// Provider status codes carried by inbound external bookings.
const (
	ExternalStatusCancelled = -1
	ExternalStatusConfirmed = 2
)

// TriggerKind identifies which reconciliation rule is being applied.
type TriggerKind string

const (
	TriggerSlotRelease TriggerKind = "slot-release"
	TriggerClose       TriggerKind = "close"
	TriggerExternal    TriggerKind = "external"
)

// ExternalUpdate is the slice of an inbound provider booking the state
// machine compares against the stored record.
type ExternalUpdate struct {
	Status            int
	AppointmentDate   string // "2006-01-02"
	AppointmentTime   *string
	VideoConsultation bool
}

// Trigger is the input event for Decide.
type Trigger struct {
	Kind     TriggerKind
	External *ExternalUpdate
}

// Decision is the computed outcome of a transition: the next status plus
// which field mutations accompany it. Callers persist it; Decide itself
// mutates nothing.
type Decision struct {
	Next Status

	// ReleaseSlot zeroes slotReservationId and clears appointmentTime.
	ReleaseSlot bool
	// DeactivateReminder deactivates the reminder linked to the appointment.
	DeactivateReminder bool
	// SyncExternal carries the provider fields to copy onto the record.
	SyncExternal *ExternalUpdate
}

// Decide computes the next status and field mutations for an appointment
// given a trigger. For the external trigger, a nil appointment means no
// local record exists and the decision describes the record to insert.
func Decide(a *Appointment, tr Trigger) (Decision, error) {
	switch tr.Kind {
	case TriggerSlotRelease:
		return decideSlotRelease(a)
	case TriggerClose:
		return decideClose(a)
	case TriggerExternal:
		return decideExternal(a, tr.External)
	}
	return Decision{}, fmt.Errorf("appointment: unknown trigger %q", tr.Kind)
}

func decideSlotRelease(a *Appointment) (Decision, error) {
	if a == nil {
		return Decision{}, fmt.Errorf("appointment: slot-release requires a record")
	}
	if a.Status != StatusPaymentPending && a.Status != StatusPaymentFailed {
		return Decision{}, fmt.Errorf("appointment: slot-release not applicable from %s", a.Status)
	}
	return Decision{Next: StatusDraft, ReleaseSlot: true}, nil
}

func decideClose(a *Appointment) (Decision, error) {
	if a == nil {
		return Decision{}, fmt.Errorf("appointment: close requires a record")
	}
	switch a.Status {
	case StatusScheduled, StatusRescheduled, StatusStarted:
		return Decision{Next: StatusClosed, DeactivateReminder: true}, nil
	}
	return Decision{}, fmt.Errorf("appointment: close not applicable from %s", a.Status)
}

func decideExternal(a *Appointment, in *ExternalUpdate) (Decision, error) {
	if in == nil {
		return Decision{}, fmt.Errorf("appointment: external trigger requires provider fields")
	}

	switch in.Status {
	case ExternalStatusCancelled:
		return Decision{Next: StatusCancelled, SyncExternal: in}, nil
	case ExternalStatusConfirmed:
		if a == nil || !externalChanged(a, in) {
			return Decision{Next: StatusScheduled, SyncExternal: in}, nil
		}
		return Decision{Next: StatusRescheduled, SyncExternal: in}, nil
	}
	return Decision{}, fmt.Errorf("appointment: unknown external status %d", in.Status)
}

func externalChanged(a *Appointment, in *ExternalUpdate) bool {
	if a.AppointmentDate.Format("2006-01-02") != in.AppointmentDate {
		return true
	}
	if (a.AppointmentTime == nil) != (in.AppointmentTime == nil) {
		return true
	}
	if a.AppointmentTime != nil && *a.AppointmentTime != *in.AppointmentTime {
		return true
	}
	return a.VideoConsultation != in.VideoConsultation
}
