package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/carebridge-health/carebridge-platform/internal/notification"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

// AlertService emails operators when a notification exhausts its delivery
// retries. Quarantined records have no other push channel, so this is the
// operator-facing signal.
type AlertService struct {
	email  EmailSender
	toAddr string
	logger *logging.Logger
}

// NewAlertService creates an alert service. With no sender or recipient
// configured, alerts are logged and dropped.
func NewAlertService(email EmailSender, toAddr string, logger *logging.Logger) *AlertService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AlertService{email: email, toAddr: toAddr, logger: logger}
}

// NotifyPermanentFailure reports a notification that reached
// PERMANENTLY-FAILED.
func (s *AlertService) NotifyPermanentFailure(ctx context.Context, n notification.Notification) error {
	if s == nil || s.email == nil || s.toAddr == "" {
		if s != nil {
			s.logger.Warn("ops alert dropped: email not configured",
				"notification_id", n.ID, "hospital", n.HospitalCode)
		}
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Notification %s was quarantined after %d failed delivery attempts.\n\n", n.ID, n.RetryCount)
	fmt.Fprintf(&b, "Hospital: %s\nTitle: %s\nMessage: %s\n", n.HospitalCode, n.Title, n.Message)
	if n.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", n.Phone)
	}
	if len(n.StatusMessage) > 0 {
		fmt.Fprintf(&b, "\nLast gateway response:\n%s\n", n.StatusMessage[len(n.StatusMessage)-1])
	}

	msg := EmailMessage{
		To:      s.toAddr,
		Subject: fmt.Sprintf("[carebridge] notification quarantined (%s)", n.HospitalCode),
		Body:    b.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: permanent failure alert: %w", err)
	}
	return nil
}
