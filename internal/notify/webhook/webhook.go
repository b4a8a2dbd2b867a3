// Package webhook delivers notifications as JSON POSTs to an arbitrary URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/beacon/internal/notify"
)

const httpTimeout = 10 * time.Second

// Driver implements notify.Driver for generic webhooks. The channel config
// must carry a "url" string; an optional "token" is sent as a bearer token.
type Driver struct {
	client *http.Client
}

// New creates a webhook driver.
func New() *Driver {
	return &Driver{
		client: &http.Client{Timeout: httpTimeout},
	}
}

func (d *Driver) Type() string { return "webhook" }

// ValidateConfig checks that the channel config carries a target URL.
func (d *Driver) ValidateConfig(config map[string]any) error {
	_, err := notify.ConfigString(config, "url")
	return err
}

// Send POSTs the message as JSON to the channel's URL. Any 2xx status is a
// successful delivery.
func (d *Driver) Send(ctx context.Context, msg *notify.Message, config map[string]any) (*notify.SendResult, error) {
	url, err := notify.ConfigString(config, "url")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("webhook: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := config["token"].(string); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req) //nolint:gosec // G704: url is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("webhook: post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("webhook: endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}
	return &notify.SendResult{
		Success:  true,
		Metadata: map[string]any{"status_code": resp.StatusCode},
	}, nil
}
