package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field extraction helpers. Every driver's optional-field tolerance lives
// here instead of ad hoc type switches scattered through parse code.

// str returns the first non-empty string value among keys.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case float64:
				return strconv.FormatFloat(s, 'f', -1, 64)
			case int:
				return strconv.Itoa(s)
			case bool:
				return strconv.FormatBool(s)
			}
		}
	}
	return ""
}

// num returns the first numeric value among keys. Numeric strings count.
func num(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// subMap returns m[key] when it is an object, else nil.
func subMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

// list returns m[key] when it is an array, else nil.
func list(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

// stringMap converts an object of scalars into map[string]string, dropping
// non-scalar values.
func stringMap(m map[string]any, key string) map[string]string {
	sub := subMap(m, key)
	if sub == nil {
		return nil
	}
	out := make(map[string]string, len(sub))
	for k, v := range sub {
		switch s := v.(type) {
		case string:
			out[k] = s
		case float64:
			out[k] = strconv.FormatFloat(s, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(s)
		}
	}
	return out
}

// tagLabels splits a "key:value,key:value" tag string into labels. Tags
// without a colon become "tag" -> value entries only when no key collides.
func tagLabels(tags string) map[string]string {
	if tags == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(tags, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, ":"); ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		} else if _, exists := out["tag"]; !exists {
			out["tag"] = part
		}
	}
	return out
}

// parseTime accepts RFC3339 strings, unix seconds, and unix milliseconds.
// Zero value when the input is absent or unparseable.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return unixTime(f)
		}
	case float64:
		return unixTime(t)
	case int64:
		return unixTime(float64(t))
	}
	return time.Time{}
}

func unixTime(f float64) time.Time {
	// Treat values past the year ~5000 as milliseconds.
	if f > 1e11 {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Unix(int64(f), 0).UTC()
}

// invalid formats the standard Parse failure for a driver.
func invalid(driver string) error {
	return fmt.Errorf("%s: %w", driver, ErrInvalidPayload)
}
