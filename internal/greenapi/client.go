// Package greenapi integrates with a Green-API style WhatsApp gateway: an
// outbound send client and the inbound webhook listener.
package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIBase    = "https://api.green-api.com"
	sendTimeout       = 15 * time.Second
	// Gateways throttle aggressively; pace outbound sends to 1/s with a
	// small burst.
	sendRate  = 1
	sendBurst = 3
)

// Client sends messages through the gateway's HTTP API.
type Client struct {
	instanceID string
	token      string
	apiBase    string
	client     *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a send client. Empty credentials are tolerated: sends
// fail with a descriptive error instead (mirrors degraded local runs).
func NewClient(instanceID, token string) *Client {
	return &Client{
		instanceID: instanceID,
		token:      token,
		apiBase:    defaultAPIBase,
		client:     &http.Client{Timeout: sendTimeout},
		limiter:    rate.NewLimiter(rate.Limit(sendRate), sendBurst),
	}
}

// WithAPIBase returns the client pointed at a custom gateway base URL.
func (c *Client) WithAPIBase(base string) *Client {
	c.apiBase = strings.TrimRight(base, "/")
	return c
}

// SendText delivers plain text to a chat. The destination is a bare phone
// number; the "@c.us" suffix is appended when missing.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	if c.instanceID == "" || c.token == "" {
		return fmt.Errorf("green-api: credentials missing")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("green-api: rate limit wait: %w", err)
	}

	chatID := to
	if !strings.Contains(chatID, "@") {
		chatID += "@c.us"
	}

	payload, err := json.Marshal(map[string]string{
		"chatId":  chatID,
		"message": text,
	})
	if err != nil {
		return fmt.Errorf("green-api: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/waInstance%s/SendMessage/%s", c.apiBase, c.instanceID, c.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("green-api: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("green-api: send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("green-api: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
