package notification

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the delivery lifecycle of a queued notification.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusFailed            Status = "FAILED"
	StatusSuccess           Status = "SUCCESS"
	StatusPermanentlyFailed Status = "PERMANENTLY-FAILED"
)

// MaxAttemptCount bounds delivery retries. A notification that fails this
// many attempts becomes PERMANENTLY-FAILED and is never selected again.
const MaxAttemptCount = 3

// Terminal reports whether the delivery job will never pick the record up
// again.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusPermanentlyFailed
}

// Notification represents one queued outbound message.
type Notification struct {
	ID     uuid.UUID `json:"id"`
	Status Status    `json:"status"`

	// NotifyAt is the earliest eligible delivery instant.
	NotifyAt   time.Time `json:"notifyAt"`
	RetryCount int       `json:"retryCount"`
	// StatusMessage holds one raw gateway response per delivery attempt.
	StatusMessage []string `json:"statusMessage"`

	PlayerID     string `json:"playerId,omitempty"` // push target
	Phone        string `json:"phone,omitempty"`
	HospitalCode string `json:"hospitalCode"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Details      string `json:"notificationDetails,omitempty"`
	Path         string `json:"path,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
