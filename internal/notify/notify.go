// Package notify defines notification drivers: outbound delivery backends
// the pipeline fans a message out to, one per configured channel.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// ErrUnknownDriver is returned when a channel references a driver type that
// was never registered.
var ErrUnknownDriver = fmt.Errorf("notify: unknown driver")

// ErrInvalidConfig wraps channel configuration errors.
var ErrInvalidConfig = fmt.Errorf("notify: invalid channel config")

// Message is a rendered notification, independent of delivery backend.
type Message struct {
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Severity   alert.Severity    `json:"severity"`
	AlertName  string            `json:"alert_name,omitempty"`
	IncidentID string            `json:"incident_id,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// SendResult reports one delivery attempt.
type SendResult struct {
	Success   bool           `json:"success"`
	MessageID string         `json:"message_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Driver delivers messages for one channel type. Config is the channel's
// stored configuration map; ValidateConfig rejects maps Send could not use.
type Driver interface {
	Type() string
	ValidateConfig(config map[string]any) error
	Send(ctx context.Context, msg *Message, config map[string]any) (*SendResult, error)
}

// Registry holds available drivers keyed by channel type.
type Registry struct {
	drivers map[string]Driver
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver, keyed by its Type.
func (r *Registry) Register(d Driver) {
	r.drivers[d.Type()] = d
}

// Get retrieves a driver by channel type.
func (r *Registry) Get(channelType string) (Driver, error) {
	d, ok := r.drivers[channelType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, channelType)
	}
	return d, nil
}

// Types lists registered driver types, in no particular order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.drivers))
	for t := range r.drivers {
		out = append(out, t)
	}
	return out
}

// ConfigString pulls a required string field out of a channel config map.
func ConfigString(config map[string]any, key string) (string, error) {
	v, ok := config[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidConfig, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidConfig, key)
	}
	return s, nil
}
