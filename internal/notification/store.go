package notification

import (
	"context"
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

// Store provides persistence for queued notifications.
type Store struct {
	db DB
}

// NewStore creates a new notification store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const selectColumns = `id, status, notify_at, retry_count, status_message,
		player_id, phone, hospital_code, title, message, details, path,
		created_at, updated_at`

// ListDeliverable returns notifications eligible for a delivery attempt:
// PENDING or FAILED with notify_at at or before asOf (boundary inclusive).
func (s *Store) ListDeliverable(ctx context.Context, asOf time.Time, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM notifications
		WHERE status IN ($1, $2) AND notify_at <= $3
		ORDER BY notify_at ASC LIMIT $4`,
		string(StatusPending), string(StatusFailed), asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("notification: list deliverable: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// RecordSuccess marks a notification delivered, appending the raw gateway
// response. SUCCESS is terminal.
func (s *Store) RecordSuccess(ctx context.Context, id uuid.UUID, response string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET status = $1, status_message = array_append(status_message, $2), updated_at = $3
		WHERE id = $4`,
		string(StatusSuccess), response, now, id)
	if err != nil {
		return fmt.Errorf("notification: record success: %w", err)
	}
	return nil
}

// RecordFailure marks a failed attempt: the retry count is incremented and
// the record stays eligible for the next tick.
func (s *Store) RecordFailure(ctx context.Context, id uuid.UUID, response string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET status = $1, retry_count = retry_count + 1,
			status_message = array_append(status_message, $2), updated_at = $3
		WHERE id = $4`,
		string(StatusFailed), response, now, id)
	if err != nil {
		return fmt.Errorf("notification: record failure: %w", err)
	}
	return nil
}

// Quarantine marks a notification PERMANENTLY-FAILED after its final
// attempt. The record is never reprocessed.
func (s *Store) Quarantine(ctx context.Context, id uuid.UUID, response string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET status = $1, retry_count = retry_count + 1,
			status_message = array_append(status_message, $2), updated_at = $3
		WHERE id = $4`,
		string(StatusPermanentlyFailed), response, now, id)
	if err != nil {
		return fmt.Errorf("notification: quarantine: %w", err)
	}
	return nil
}

// ListQuarantined returns permanently failed notifications for the operator
// surface, newest first.
func (s *Store) ListQuarantined(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM notifications
		WHERE status = $1
		ORDER BY updated_at DESC LIMIT $2`,
		string(StatusPermanentlyFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("notification: list quarantined: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func scanNotifications(rows pgx.Rows) ([]Notification, error) {
	var result []Notification
	for rows.Next() {
		var n Notification
		var status string
		err := rows.Scan(
			&n.ID, &status, &n.NotifyAt, &n.RetryCount, &n.StatusMessage,
			&n.PlayerID, &n.Phone, &n.HospitalCode, &n.Title, &n.Message, &n.Details, &n.Path,
			&n.CreatedAt, &n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("notification: scan: %w", err)
		}
		n.Status = Status(status)
		result = append(result, n)
	}
	return result, rows.Err()
}
