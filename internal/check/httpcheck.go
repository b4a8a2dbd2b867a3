package check

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPCheck probes an HTTP endpoint and reports reachability and latency.
type HTTPCheck struct {
	name       string
	url        string
	warnAfter  time.Duration
	httpClient *http.Client
}

// NewHTTPCheck creates a checker that GETs url. Responses slower than
// warnAfter degrade the result to warning; pass 0 to disable the latency
// threshold.
func NewHTTPCheck(name, url string, warnAfter time.Duration) *HTTPCheck {
	return &HTTPCheck{
		name:      name,
		url:       url,
		warnAfter: warnAfter,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPCheck) Name() string { return c.name }

// Check GETs the configured URL. A transport failure is critical, a non-2xx
// status is critical, a slow 2xx is warning.
func (c *HTTPCheck) Check(ctx context.Context) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &Result{
			Status:  StatusCritical,
			Message: fmt.Sprintf("request failed: %v", err),
			Metrics: map[string]float64{"latency_ms": float64(latency.Milliseconds())},
		}, nil
	}
	defer resp.Body.Close()

	metrics := map[string]float64{
		"latency_ms":  float64(latency.Milliseconds()),
		"status_code": float64(resp.StatusCode),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Result{
			Status:  StatusCritical,
			Message: fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, c.url),
			Metrics: metrics,
		}, nil
	}
	if c.warnAfter > 0 && latency > c.warnAfter {
		return &Result{
			Status:  StatusWarning,
			Message: fmt.Sprintf("slow response: %s > %s", latency.Round(time.Millisecond), c.warnAfter),
			Metrics: metrics,
		}, nil
	}
	return &Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("%s responded %d in %s", c.url, resp.StatusCode, latency.Round(time.Millisecond)),
		Metrics: metrics,
	}, nil
}
