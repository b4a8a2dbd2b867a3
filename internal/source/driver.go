// Package source holds the driver layer that turns vendor webhook payloads
// into canonical alert payloads. One driver per vendor shape, all behind the
// same contract, held in an ordered registry with a catch-all generic driver.
package source

import (
	"errors"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// ErrInvalidPayload is returned by Parse when the payload does not match the
// driver's shape. Callers either check Validate first or handle this error.
var ErrInvalidPayload = errors.New("invalid payload for source driver")

// ErrNoDriver is returned by Detect when no registered driver, including the
// generic fallback, accepts a payload.
var ErrNoDriver = errors.New("no source driver matches payload")

// Driver is the capability contract every source adapter implements.
//
// Validate is a pure predicate over payload shape and must never panic.
// Parse fails with ErrInvalidPayload on any payload Validate would reject
// and succeeds on every payload it would accept. Fingerprint produces the
// dedup key for an alert stream; drivers that carry a source-native
// identifier prefer it inside Parse and fall back to this method.
type Driver interface {
	Name() string
	Validate(payload map[string]any) bool
	Parse(payload map[string]any) (*alert.NormalizedPayload, error)
	Fingerprint(labels map[string]string, name string) string
}

// baseDriver supplies the default fingerprint implementation shared by all
// drivers that do not override it.
type baseDriver struct{}

func (baseDriver) Fingerprint(labels map[string]string, name string) string {
	return GenerateFingerprint(labels, name)
}
