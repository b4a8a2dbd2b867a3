// Package email delivers notifications by email through the Resend API.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/linnemanlabs/beacon/internal/notify"
)

// Driver implements notify.Driver over Resend. The channel config must carry
// "from" and "to" (string or list of strings).
type Driver struct {
	client *resend.Client
}

// New creates an email driver. An empty apiKey leaves the driver
// unconfigured; Send will fail until a key is provided.
func New(apiKey string) *Driver {
	d := &Driver{}
	if apiKey != "" {
		d.client = resend.NewClient(apiKey)
	}
	return d
}

func (d *Driver) Type() string { return "email" }

// ValidateConfig checks that the channel config carries sender and
// recipients.
func (d *Driver) ValidateConfig(config map[string]any) error {
	if _, err := notify.ConfigString(config, "from"); err != nil {
		return err
	}
	if _, err := recipients(config); err != nil {
		return err
	}
	return nil
}

// Send delivers the message as a plain-text email.
func (d *Driver) Send(ctx context.Context, msg *notify.Message, config map[string]any) (*notify.SendResult, error) {
	if d.client == nil {
		return nil, fmt.Errorf("email: no API key configured")
	}

	from, err := notify.ConfigString(config, "from")
	if err != nil {
		return nil, err
	}
	to, err := recipients(config)
	if err != nil {
		return nil, err
	}

	sent, err := d.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      to,
		Subject: fmt.Sprintf("[%s] %s", strings.ToUpper(string(msg.Severity)), msg.Title),
		Text:    renderBody(msg),
	})
	if err != nil {
		return nil, fmt.Errorf("email: send: %w", err)
	}
	return &notify.SendResult{
		Success:   true,
		MessageID: sent.Id,
	}, nil
}

// recipients accepts "to" as a single string or a list of strings. Channel
// configs loaded from JSON arrive as []any.
func recipients(config map[string]any) ([]string, error) {
	v, ok := config["to"]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", notify.ErrInvalidConfig, "to")
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, fmt.Errorf("%w: %q must not be empty", notify.ErrInvalidConfig, "to")
		}
		return []string{t}, nil
	case []string:
		if len(t) == 0 {
			return nil, fmt.Errorf("%w: %q must not be empty", notify.ErrInvalidConfig, "to")
		}
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q entries must be strings", notify.ErrInvalidConfig, "to")
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %q must not be empty", notify.ErrInvalidConfig, "to")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be a string or list of strings", notify.ErrInvalidConfig, "to")
	}
}

func renderBody(m *notify.Message) string {
	var b strings.Builder
	b.WriteString(m.Body)
	if m.AlertName != "" {
		fmt.Fprintf(&b, "\n\nAlert: %s", m.AlertName)
	}
	if m.IncidentID != "" {
		fmt.Fprintf(&b, "\nIncident: %s", m.IncidentID)
	}
	for k, v := range m.Fields {
		fmt.Fprintf(&b, "\n%s: %s", k, v)
	}
	return b.String()
}
