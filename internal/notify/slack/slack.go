// Package slack delivers notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
	"github.com/linnemanlabs/beacon/internal/notify"
)

const (
	maxBodyLen  = 3000
	httpTimeout = 10 * time.Second
)

// Driver implements notify.Driver for Slack incoming webhooks. The channel
// config must carry a "webhook_url" string.
type Driver struct {
	client *http.Client
}

// New creates a Slack driver.
func New() *Driver {
	return &Driver{
		client: &http.Client{Timeout: httpTimeout},
	}
}

func (d *Driver) Type() string { return "slack" }

// ValidateConfig checks that the channel config carries a webhook URL.
func (d *Driver) ValidateConfig(config map[string]any) error {
	_, err := notify.ConfigString(config, "webhook_url")
	return err
}

// Send posts a Block Kit message to the channel's webhook.
func (d *Driver) Send(ctx context.Context, msg *notify.Message, config map[string]any) (*notify.SendResult, error) {
	webhookURL, err := notify.ConfigString(config, "webhook_url")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildMessage(msg))
	if err != nil {
		return nil, fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return &notify.SendResult{
		Success:  true,
		Metadata: map[string]any{"status_code": resp.StatusCode},
	}, nil
}

func buildMessage(m *notify.Message) map[string]any {
	blocks := []map[string]any{
		headerBlock(m),
		{"type": "divider"},
		fieldsBlock(m),
	}
	if m.Body != "" {
		blocks = append(blocks,
			map[string]any{"type": "divider"},
			bodyBlock(m),
		)
	}
	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(m))

	return map[string]any{"blocks": blocks}
}

func headerBlock(m *notify.Message) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s", severityEmoji(m.Severity), m.Title),
		},
	}
}

func fieldsBlock(m *notify.Message) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", m.Severity),
		},
	}
	if m.AlertName != "" {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Alert:* %s", m.AlertName),
		})
	}
	if m.IncidentID != "" {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Incident:* %s", m.IncidentID),
		})
	}

	// stable field ordering across renders
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s:* %s", k, m.Fields[k]),
		})
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func bodyBlock(m *notify.Message) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": truncate(m.Body, maxBodyLen),
		},
	}
}

func contextBlock(m *notify.Message) map[string]any {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("beacon • %s", ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func severityEmoji(severity alert.Severity) string {
	switch severity {
	case alert.SeverityCritical:
		return "\U0001f534" // red circle
	case alert.SeverityWarning:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
