package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of an appointment.
type Status string

const (
	StatusDraft          Status = "DRAFT"
	StatusPaymentPending Status = "PAYMENT_PENDING"
	StatusPaymentFailed  Status = "PAYMENT_FAILED"
	StatusScheduled      Status = "SCHEDULED"
	StatusRescheduled    Status = "RE_SCHEDULED"
	StatusStarted        Status = "STARTED"
	StatusClosed         Status = "CLOSED"
	StatusCancelled      Status = "CANCELLED"
)

// ParseStatus validates a raw status value. A value outside the enum would
// make the record invisible to every reconciliation job, so it is rejected
// rather than defaulted.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusDraft, StatusPaymentPending, StatusPaymentFailed,
		StatusScheduled, StatusRescheduled, StatusStarted,
		StatusClosed, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("appointment: unknown status %q", raw)
}

// Terminal reports whether no further job-driven transition occurs.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// Appointment represents one patient-doctor booking.
type Appointment struct {
	ID         uuid.UUID `json:"id"`
	ExternalID *int64    `json:"appointmentId,omitempty"` // provider booking id

	Status Status `json:"status"`
	// StatusLog is append-only: its last element is always the status held
	// immediately before the current Status value.
	StatusLog []string `json:"statusLog"`

	HospitalCode    string `json:"hospitalCode"`
	HospitalID      string `json:"hospitalId"`
	HospitalName    string `json:"hospitalName"`
	HospitalContact string `json:"hospitalContact,omitempty"`

	DoctorID    string `json:"doctorId"`
	DoctorName  string `json:"doctorName"`
	DoctorPhone string `json:"doctorPhone,omitempty"`

	PatientID    string `json:"patientId"`
	PatientName  string `json:"patientName"`
	PatientPhone string `json:"patientPhone,omitempty"`

	FamilyMemberID string `json:"familyMemberId,omitempty"`
	UserID         string `json:"userId"`

	BookingDateTime   *time.Time `json:"bookingDateTime,omitempty"`
	AppointmentDate   time.Time  `json:"appointmentDate"`
	AppointmentTime   *string    `json:"appointmentTime,omitempty"` // "HH:MM"
	SlotReservationID int64      `json:"slotReservationId"`

	VideoConsultation bool `json:"videoConsultation"`
	Active            bool `json:"active"`
	Read              bool `json:"read"`
	HospitalBooking   bool `json:"hospitalBooking"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EffectiveStart combines AppointmentDate with the hour/minute parsed from
// AppointmentTime. When the time is absent or malformed the date alone is
// used.
func (a *Appointment) EffectiveStart() time.Time {
	return EffectiveStart(a.AppointmentDate, a.AppointmentTime)
}

// EffectiveStart computes an appointment's start instant from its date and
/// optional "HH:MM" time-of-day.
func EffectiveStart(date time.Time, timeOfDay *string) time.Time {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	if timeOfDay == nil {
		return start
	}
	parsed, err := time.Parse("15:04", *timeOfDay)
	if err != nil {
		return start
	}
	return start.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute)
}
