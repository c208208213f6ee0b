package hospital

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// Client wraps the per-hospital booking provider REST API. Each call is
// parameterized by a ResourceConfig; the client itself holds no hospital
// state. There is no built-in retry: callers own retry policy.
type Client struct {
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient constructs a booking provider client.
func NewClient(timeout time.Duration, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchPendingBookings retrieves the provider's pending booking queue for a
// hospital. Items stay in the queue until acknowledged.
func (c *Client) FetchPendingBookings(ctx context.Context, cfg ResourceConfig) ([]InboundBooking, error) {
	var wrapped struct {
		Bookings []InboundBooking `json:"bookings"`
		Data     []InboundBooking `json:"data"`
	}
	if err := c.doJSON(ctx, cfg, http.MethodGet, "/api/v1/bookings/pending", nil, &wrapped); err != nil {
		return nil, fmt.Errorf("fetch pending bookings: %w", err)
	}
	if len(wrapped.Bookings) > 0 {
		return wrapped.Bookings, nil
	}
	return wrapped.Data, nil
}

// ReleaseSlot cancels a slot reservation at the provider.
func (c *Client) ReleaseSlot(ctx context.Context, cfg ResourceConfig, reservationID int64) error {
	path := fmt.Sprintf("/api/v1/slots/reservations/%d", reservationID)
	if err := c.doJSON(ctx, cfg, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// AcknowledgeBooking tells the provider a pending booking has been consumed
// so it stops re-offering it.
func (c *Client) AcknowledgeBooking(ctx context.Context, cfg ResourceConfig, appointmentID int64) error {
	path := fmt.Sprintf("/api/v1/bookings/%d/ack", appointmentID)
	if err := c.doJSON(ctx, cfg, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("acknowledge booking: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, cfg ResourceConfig, method, path string, body interface{}, out interface{}) error {
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("hospital API non-2xx response",
			"hospital", cfg.HospitalCode, "status", resp.StatusCode, "path", path, "body", msg)
		return fmt.Errorf("hospital API returned %d: %s", resp.StatusCode, msg)
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
