package check

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// PromQuery evaluates a PromQL instant query against a Prometheus-compatible
// endpoint and grades the first sample value against thresholds.
type PromQuery struct {
	name       string
	endpoint   string
	query      string
	warnAbove  float64
	critAbove  float64
	httpClient *http.Client
}

// NewPromQuery creates a checker that runs query against endpoint. The result
// is warning when the sampled value exceeds warnAbove and critical when it
// exceeds critAbove. critAbove must be >= warnAbove.
func NewPromQuery(name, endpoint, query string, warnAbove, critAbove float64) *PromQuery {
	return &PromQuery{
		name:      name,
		endpoint:  endpoint,
		query:     query,
		warnAbove: warnAbove,
		critAbove: critAbove,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *PromQuery) Name() string { return p.name }

// Check runs the instant query. An empty result vector is unknown, not a
// failure: the metric may simply not exist yet.
func (p *PromQuery) Check(ctx context.Context) (*Result, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	u.Path = "/api/v1/query"
	q := u.Query()
	q.Set("query", p.query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prometheus query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prometheus returned %d: %s", resp.StatusCode, string(body))
	}

	var promResp struct {
		Status string `json:"status"`
		Data   struct {
			Result []struct {
				Value [2]json.RawMessage `json:"value"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &promResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if promResp.Status != "success" {
		return nil, fmt.Errorf("prometheus query failed: %s", string(body))
	}

	if len(promResp.Data.Result) == 0 {
		return &Result{
			Status:  StatusUnknown,
			Message: fmt.Sprintf("query %q returned no samples", p.query),
		}, nil
	}

	var raw string
	if err := json.Unmarshal(promResp.Data.Result[0].Value[1], &raw); err != nil {
		return nil, fmt.Errorf("parse sample: %w", err)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse sample value %q: %w", raw, err)
	}

	res := &Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("%s = %g", p.query, value),
		Metrics: map[string]float64{"value": value},
	}
	switch {
	case value > p.critAbove:
		res.Status = StatusCritical
		res.Message = fmt.Sprintf("%s = %g exceeds critical threshold %g", p.query, value, p.critAbove)
	case value > p.warnAbove:
		res.Status = StatusWarning
		res.Message = fmt.Sprintf("%s = %g exceeds warning threshold %g", p.query, value, p.warnAbove)
	}
	return res, nil
}
