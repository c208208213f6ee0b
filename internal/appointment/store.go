package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for appointments.
type Store struct {
	db DB
}

// NewStore creates a new appointment store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const selectColumns = `id, external_appointment_id, status, status_log,
		hospital_code, hospital_id, hospital_name, hospital_contact,
		doctor_id, doctor_name, doctor_phone,
		patient_id, patient_name, patient_phone,
		family_member_id, user_id,
		booking_datetime, appointment_date, appointment_time, slot_reservation_id,
		video_consultation, active, is_read, hospital_booking,
		created_at, updated_at`

// ListPaymentStale returns appointments stuck in a payment state whose slot
// was reserved before the cutoff.
func (s *Store) ListPaymentStale(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE status IN ($1, $2) AND booking_datetime < $3
		ORDER BY booking_datetime ASC`,
		string(StatusPaymentPending), string(StatusPaymentFailed), cutoff)
	if err != nil {
		return nil, fmt.Errorf("appointment: list payment stale: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ReleaseSlot applies the slot-release transition: back to DRAFT with the
// reservation zeroed and the time-of-day cleared. The previous status is
// appended to status_log. The from guard makes a concurrent transition a
// reported no-op instead of a double write.
func (s *Store) ReleaseSlot(ctx context.Context, id uuid.UUID, from Status) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET status = $1, slot_reservation_id = 0, appointment_time = NULL,
			status_log = array_append(status_log, status), updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(StatusDraft), now, id, string(from))
	if err != nil {
		return fmt.Errorf("appointment: release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment: release slot: no %s appointment with id %s", from, id)
	}
	return nil
}

// ListOpenScheduled returns appointments that may still need to be closed.
func (s *Store) ListOpenScheduled(ctx context.Context) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE status IN ($1, $2, $3)
		ORDER BY appointment_date ASC`,
		string(StatusScheduled), string(StatusRescheduled), string(StatusStarted))
	if err != nil {
		return nil, fmt.Errorf("appointment: list open scheduled: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Close applies the close transition, appending the previous status to
// status_log.
func (s *Store) Close(ctx context.Context, id uuid.UUID, from Status) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET status = $1, status_log = array_append(status_log, status), updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(StatusClosed), now, id, string(from))
	if err != nil {
		return fmt.Errorf("appointment: close: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment: close: no %s appointment with id %s", from, id)
	}
	return nil
}

// ListVideoConsultations returns scheduled video consultations. The caller
// applies the start-window filter since the window combines two columns.
func (s *Store) ListVideoConsultations(ctx context.Context) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE status IN ($1, $2) AND video_consultation
		ORDER BY appointment_date ASC`,
		string(StatusScheduled), string(StatusRescheduled))
	if err != nil {
		return nil, fmt.Errorf("appointment: list video consultations: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// FindByProviderKey looks up an appointment by its natural key. Returns nil
// when no record matches.
func (s *Store) FindByProviderKey(ctx context.Context, hospitalCode string, externalID int64) (*Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE hospital_code = $1 AND external_appointment_id = $2
		LIMIT 1`, hospitalCode, externalID)
	if err != nil {
		return nil, fmt.Errorf("appointment: find by provider key: %w", err)
	}
	defer rows.Close()
	found, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// UpsertFromProvider writes an inbound provider booking by its natural key
// (hospital_code, external_appointment_id). On conflict only the provider-
// owned fields are mutated: video_consultation, appointment_date,
// appointment_time and status, with the previous status appended to
// status_log. On insert the full record is written; status is always set
// through the same explicit value, never an insert-only default. Returns
// whether a new row was inserted.
func (s *Store) UpsertFromProvider(ctx context.Context, a *Appointment) (bool, error) {
	if a.ExternalID == nil {
		return false, errors.New("appointment: upsert from provider: missing external id")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()

	row := s.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, external_appointment_id, status, status_log,
			hospital_code, hospital_id, hospital_name, hospital_contact,
			doctor_id, doctor_name, doctor_phone,
			patient_id, patient_name, patient_phone,
			family_member_id, user_id,
			booking_datetime, appointment_date, appointment_time, slot_reservation_id,
			video_consultation, active, is_read, hospital_booking,
			created_at, updated_at
		) VALUES ($1, $2, $3, '{}', $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $24)
		ON CONFLICT (hospital_code, external_appointment_id) WHERE external_appointment_id IS NOT NULL
		DO UPDATE SET
			status = EXCLUDED.status,
			status_log = array_append(appointments.status_log, appointments.status),
			video_consultation = EXCLUDED.video_consultation,
			appointment_date = EXCLUDED.appointment_date,
			appointment_time = EXCLUDED.appointment_time,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted`,
		a.ID, *a.ExternalID, string(a.Status),
		a.HospitalCode, a.HospitalID, a.HospitalName, a.HospitalContact,
		a.DoctorID, a.DoctorName, a.DoctorPhone,
		a.PatientID, a.PatientName, a.PatientPhone,
		a.FamilyMemberID, a.UserID,
		a.BookingDateTime, a.AppointmentDate, a.AppointmentTime, a.SlotReservationID,
		a.VideoConsultation, a.Active, a.Read, a.HospitalBooking,
		now)

	var inserted bool
	if err := row.Scan(&inserted); err != nil {
		return false, fmt.Errorf("appointment: upsert from provider: %w", err)
	}
	return inserted, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		var a Appointment
		var status string
		err := rows.Scan(
			&a.ID, &a.ExternalID, &status, &a.StatusLog,
			&a.HospitalCode, &a.HospitalID, &a.HospitalName, &a.HospitalContact,
			&a.DoctorID, &a.DoctorName, &a.DoctorPhone,
			&a.PatientID, &a.PatientName, &a.PatientPhone,
			&a.FamilyMemberID, &a.UserID,
			&a.BookingDateTime, &a.AppointmentDate, &a.AppointmentTime, &a.SlotReservationID,
			&a.VideoConsultation, &a.Active, &a.Read, &a.HospitalBooking,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("appointment: scan: %w", err)
		}
		a.Status = Status(status)
		result = append(result, a)
	}
	return result, rows.Err()
}
