package check

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// LogQuery counts log lines matching a LogQL expression over a recent window
// and grades the count against thresholds. A spike in error lines around an
// alert is a strong signal the alert is real.
type LogQuery struct {
	name       string
	endpoint   string
	tenantID   string
	query      string
	window     time.Duration
	warnAbove  int
	critAbove  int
	httpClient *http.Client
	now        func() time.Time
}

// NewLogQuery creates a checker that runs a LogQL query against a Loki
// endpoint over the trailing window. The result is warning when the matched
// line count exceeds warnAbove and critical when it exceeds critAbove.
// tenantID may be empty for single-tenant Loki.
func NewLogQuery(name, endpoint, tenantID, query string, window time.Duration, warnAbove, critAbove int) *LogQuery {
	if window <= 0 {
		window = time.Hour
	}
	return &LogQuery{
		name:      name,
		endpoint:  endpoint,
		tenantID:  tenantID,
		query:     query,
		window:    window,
		warnAbove: warnAbove,
		critAbove: critAbove,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

func (l *LogQuery) Name() string { return l.name }

// maxLogLines caps how many lines one probe pulls back. The checker only
// counts lines, it does not carry them, so a tight cap keeps probes cheap.
const maxLogLines = 500

// Check runs the range query over the trailing window and counts matched
// lines across all streams.
func (l *LogQuery) Check(ctx context.Context) (*Result, error) {
	u, err := url.Parse(l.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	u.Path = path.Join(u.Path, "loki/api/v1/query_range")

	end := l.now().UTC()
	start := end.Add(-l.window)

	q := u.Query()
	q.Set("query", l.query)
	q.Set("start", start.Format(time.RFC3339Nano))
	q.Set("end", end.Format(time.RFC3339Nano))
	q.Set("limit", fmt.Sprintf("%d", maxLogLines))
	q.Set("direction", "backward")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if l.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", l.tenantID)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loki query failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20)) // 5 MB
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loki returned %d: %s", resp.StatusCode, string(body))
	}

	var lokiResp struct {
		Status string `json:"status"`
		Data   struct {
			Result []struct {
				Stream map[string]string `json:"stream"`
				Values [][]string        `json:"values"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &lokiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if lokiResp.Status != "success" {
		return nil, fmt.Errorf("loki query failed: %s", string(body))
	}

	lines := 0
	for _, stream := range lokiResp.Data.Result {
		lines += len(stream.Values)
	}

	res := &Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("%d line(s) matched %s over %s", lines, l.query, l.window),
		Metrics: map[string]float64{
			"line_count":   float64(lines),
			"stream_count": float64(len(lokiResp.Data.Result)),
		},
	}
	switch {
	case lines > l.critAbove:
		res.Status = StatusCritical
		res.Message = fmt.Sprintf("%d line(s) matched %s, exceeds critical threshold %d", lines, l.query, l.critAbove)
	case lines > l.warnAbove:
		res.Status = StatusWarning
		res.Message = fmt.Sprintf("%d line(s) matched %s, exceeds warning threshold %d", lines, l.query, l.warnAbove)
	}
	return res, nil
}
