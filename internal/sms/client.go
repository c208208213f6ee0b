package sms

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

const defaultTimeout = 10 * time.Second

// Client sends SMS through the platform's SMS aggregator. The hospital code
// selects the registered sender id for that hospital.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logging.Logger
}

// NewClient constructs an SMS gateway client.
func NewClient(baseURL, apiKey string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

// SendSMS delivers one text message. The raw gateway response is returned
// alongside any error so callers can record it per attempt.
func (c *Client) SendSMS(ctx context.Context, phone, text, hospitalCode string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"to":     phone,
		"text":   text,
		"sender": hospitalCode,
	})
	if err != nil {
		return "", fmt.Errorf("sms: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err.Error(), fmt.Errorf("sms: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("sms: read response: %w", err)
	}
	raw := string(respBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := raw
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("sms gateway non-2xx response", "status", resp.StatusCode, "body", msg)
		return raw, fmt.Errorf("sms: gateway returned %d", resp.StatusCode)
	}
	return raw, nil
}
