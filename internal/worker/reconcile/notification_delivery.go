package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge-health/carebridge-platform/internal/notification"
	"github.com/carebridge-health/carebridge-platform/internal/observability/metrics"
	"github.com/carebridge-health/carebridge-platform/internal/push"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

const deliveryJobName = "notification_delivery"

type deliveryStore interface {
	ListDeliverable(ctx context.Context, asOf time.Time, limit int) ([]notification.Notification, error)
	RecordSuccess(ctx context.Context, id uuid.UUID, response string) error
	RecordFailure(ctx context.Context, id uuid.UUID, response string) error
	Quarantine(ctx context.Context, id uuid.UUID, response string) error
}

type pushSender interface {
	SendPush(ctx context.Context, playerID string, p push.Payload) (string, error)
}

type failureAlerter interface {
	NotifyPermanentFailure(ctx context.Context, n notification.Notification) error
}

// DeliveryJob drains the notification queue: push to the player id, SMS
// when a phone is present, with retries capped at the notification max
// attempt count. This job runs on the tightest interval of the subsystem.
type DeliveryJob struct {
	store       deliveryStore
	push        pushSender
	sms         smsSender
	alerts      failureAlerter
	logger      *logging.Logger
	metrics     *metrics.ReconcilerMetrics
	maxAttempts int
	batchSize   int
}

// NewDeliveryJob creates a notification delivery job.
func NewDeliveryJob(store deliveryStore, pushClient pushSender, smsClient smsSender, alerts failureAlerter, logger *logging.Logger, m *metrics.ReconcilerMetrics) *DeliveryJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &DeliveryJob{
		store:       store,
		push:        pushClient,
		sms:         smsClient,
		alerts:      alerts,
		logger:      logger,
		metrics:     m,
		maxAttempts: notification.MaxAttemptCount,
		batchSize:   50,
	}
}

// WithMaxAttempts overrides the retry cap.
func (j *DeliveryJob) WithMaxAttempts(n int) *DeliveryJob {
	if n > 0 {
		j.maxAttempts = n
	}
	return j
}

// WithBatchSize sets how many notifications one tick drains.
func (j *DeliveryJob) WithBatchSize(n int) *DeliveryJob {
	if n > 0 {
		j.batchSize = n
	}
	return j
}

func (j *DeliveryJob) Name() string { return deliveryJobName }

// Run attempts delivery for one batch of due notifications.
func (j *DeliveryJob) Run(ctx context.Context) error {
	due, err := j.store.ListDeliverable(ctx, time.Now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("notification delivery: %w", err)
	}

	for i := range due {
		j.deliverOne(ctx, &due[i])
	}
	return nil
}

func (j *DeliveryJob) deliverOne(ctx context.Context, n *notification.Notification) {
	var responses []string
	failed := false

	if n.PlayerID != "" {
		raw, err := j.push.SendPush(ctx, n.PlayerID, push.Payload{
			Title:   n.Title,
			Message: n.Message,
			Details: n.Details,
			Path:    n.Path,
		})
		if raw == "" && err != nil {
			raw = err.Error()
		}
		responses = append(responses, raw)
		if err != nil {
			failed = true
		}
	}

	if n.Phone != "" {
		raw, err := j.sms.SendSMS(ctx, n.Phone, n.Message, n.HospitalCode)
		if raw == "" && err != nil {
			raw = err.Error()
		}
		responses = append(responses, raw)
		if err != nil {
			failed = true
		}
	}

	if len(responses) == 0 {
		// Neither channel is addressable; retrying cannot help, but the
		// bounded retry path keeps the record observable until quarantine.
		failed = true
		responses = append(responses, "no delivery channel: missing player id and phone")
		j.logger.Warn("notification has no delivery channel", "notification_id", n.ID)
	}

	response := strings.Join(responses, " | ")

	if !failed {
		if err := j.store.RecordSuccess(ctx, n.ID, response); err != nil {
			j.logger.Error("record success failed", "notification_id", n.ID, "error", err)
			return
		}
		j.metrics.ObserveRecord(deliveryJobName, "ok")
		return
	}

	if n.RetryCount+1 >= j.maxAttempts {
		if err := j.store.Quarantine(ctx, n.ID, response); err != nil {
			j.logger.Error("quarantine failed", "notification_id", n.ID, "error", err)
			return
		}
		j.metrics.ObserveRecord(deliveryJobName, "quarantined")
		j.logger.Error("notification permanently failed",
			"notification_id", n.ID, "hospital", n.HospitalCode, "attempts", n.RetryCount+1)
		if j.alerts != nil {
			quarantined := *n
			quarantined.Status = notification.StatusPermanentlyFailed
			quarantined.RetryCount = n.RetryCount + 1
			quarantined.StatusMessage = append(append([]string{}, n.StatusMessage...), response)
			if err := j.alerts.NotifyPermanentFailure(ctx, quarantined); err != nil {
				j.logger.Error("ops alert failed", "notification_id", n.ID, "error", err)
			}
		}
		return
	}

	if err := j.store.RecordFailure(ctx, n.ID, response); err != nil {
		j.logger.Error("record failure failed", "notification_id", n.ID, "error", err)
		return
	}
	j.metrics.ObserveRecord(deliveryJobName, "failed")
	j.logger.Warn("notification delivery failed, will retry",
		"notification_id", n.ID, "attempt", n.RetryCount+1, "max", j.maxAttempts)
}
