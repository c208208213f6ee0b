package push

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

const (
	defaultBaseURL = "https://onesignal.com/api/v1"
	defaultTimeout = 10 * time.Second
)

// Payload is the channel-agnostic content of one push notification.
type Payload struct {
	Title   string
	Message string
	Details string
	Path    string
}

// Client sends player-id targeted push notifications through the push
// gateway's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	apiKey     string
	logger     *logging.Logger
}

// NewClient constructs a push gateway client.
func NewClient(baseURL, appID, apiKey string, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// SendPush delivers one notification to a player id. The raw gateway
// response body is returned in both the success and failure paths so
// callers can record it per attempt.
func (c *Client) SendPush(ctx context.Context, playerID string, p Payload) (string, error) {
	body := map[string]any{
		"app_id":             c.appID,
		"include_player_ids": []string{playerID},
		"headings":           map[string]string{"en": p.Title},
		"contents":           map[string]string{"en": p.Message},
	}
	data := map[string]string{}
	if p.Details != "" {
		data["details"] = p.Details
	}
	if p.Path != "" {
		data["path"] = p.Path
	}
	if len(data) > 0 {
		body["data"] = data
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("push: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notifications", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err.Error(), fmt.Errorf("push: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("push: read response: %w", err)
	}
	raw := string(respBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("push gateway non-2xx response", "status", resp.StatusCode, "body", truncate(raw))
		return raw, fmt.Errorf("push: gateway returned %d", resp.StatusCode)
	}
	return raw, nil
}

func truncate(s string) string {
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
