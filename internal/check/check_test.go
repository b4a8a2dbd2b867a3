package check

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubChecker struct{ name string }

func (s *stubChecker) Name() string { return s.name }
func (s *stubChecker) Check(context.Context) (*Result, error) {
	return &Result{Status: StatusOK}, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&stubChecker{name: "disk"})
	r.Register(&stubChecker{name: "api"})

	if _, err := r.Get("disk"); err != nil {
		t.Errorf("Get(disk): %v", err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknownChecker) {
		t.Errorf("Get(missing) error = %v, want ErrUnknownChecker", err)
	}
	if got := len(r.Names()); got != 2 {
		t.Errorf("Names() = %d entries, want 2", got)
	}
}

func TestHTTPCheck_OK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPCheck("api", srv.URL, 0)
	res, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Status != StatusOK {
		t.Errorf("Status = %q, want ok", res.Status)
	}
	if res.Metrics["status_code"] != http.StatusNoContent {
		t.Errorf("status_code = %v, want 204", res.Metrics["status_code"])
	}
	if _, ok := res.Metrics["latency_ms"]; !ok {
		t.Error("latency_ms metric missing")
	}
}

func TestHTTPCheck_NonSuccessStatusIsCritical(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPCheck("api", srv.URL, 0)
	res, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Status != StatusCritical {
		t.Errorf("Status = %q, want critical", res.Status)
	}
}

func TestHTTPCheck_UnreachableIsCritical(t *testing.T) {
	t.Parallel()

	// closed port: connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewHTTPCheck("api", url, 0)
	res, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Status != StatusCritical {
		t.Errorf("Status = %q, want critical", res.Status)
	}
}

func TestHTTPCheck_SlowResponseIsWarning(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPCheck("api", srv.URL, time.Millisecond)
	res, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Status != StatusWarning {
		t.Errorf("Status = %q, want warning", res.Status)
	}
}

func newTestPromQuery(t *testing.T, warn, crit float64, handler http.HandlerFunc) *PromQuery {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPromQuery("disk_usage", srv.URL, "disk_used_percent", warn, crit)
}

func promVector(value string) string {
	return fmt.Sprintf(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1234,%q]}]}}`, value)
}

func TestPromQuery_Thresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  Status
	}{
		{"below both thresholds", "42", StatusOK},
		{"above warning", "85", StatusWarning},
		{"above critical", "97.5", StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newTestPromQuery(t, 80, 95, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/query" {
					t.Errorf("path = %q, want /api/v1/query", r.URL.Path)
				}
				if r.URL.Query().Get("query") != "disk_used_percent" {
					t.Errorf("query = %q", r.URL.Query().Get("query"))
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = fmt.Fprint(w, promVector(tt.value))
			})

			res, err := p.Check(context.Background())
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %q, want %q", res.Status, tt.want)
			}
		})
	}
}

func TestPromQuery_EmptyResultIsUnknown(t *testing.T) {
	t.Parallel()

	p := newTestPromQuery(t, 80, 95, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[]}}`)
	})

	res, err := p.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Status != StatusUnknown {
		t.Errorf("Status = %q, want unknown", res.Status)
	}
}

func TestPromQuery_ServerError(t *testing.T) {
	t.Parallel()

	p := newTestPromQuery(t, 80, 95, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := p.Check(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func newTestLogQuery(t *testing.T, warn, crit int, handler http.HandlerFunc) *LogQuery {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLogQuery("logquery", srv.URL, "team-a", `{job="beacon"} |= "error"`, time.Hour, warn, crit)
}

// lokiStreams renders a query_range response carrying n matched lines.
func lokiStreams(n int) string {
	values := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			values += ","
		}
		values += fmt.Sprintf(`["170000000000000%d","error line %d"]`, i, i)
	}
	return `{"status":"success","data":{"resultType":"streams","result":[{"stream":{"job":"beacon"},"values":[` + values + `]}]}}`
}

func TestLogQuery_Thresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lines int
		want  Status
	}{
		{"no matches", 0, StatusOK},
		{"below both thresholds", 3, StatusOK},
		{"above warning", 7, StatusWarning},
		{"above critical", 25, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := newTestLogQuery(t, 5, 20, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/loki/api/v1/query_range" {
					t.Errorf("path = %q, want /loki/api/v1/query_range", r.URL.Path)
				}
				if got := r.Header.Get("X-Scope-OrgID"); got != "team-a" {
					t.Errorf("X-Scope-OrgID = %q, want team-a", got)
				}
				if r.URL.Query().Get("direction") != "backward" {
					t.Errorf("direction = %q, want backward", r.URL.Query().Get("direction"))
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = fmt.Fprint(w, lokiStreams(tt.lines))
			})

			res, err := l.Check(context.Background())
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %q, want %q", res.Status, tt.want)
			}
			if got := res.Metrics["line_count"]; got != float64(tt.lines) {
				t.Errorf("line_count = %g, want %d", got, tt.lines)
			}
		})
	}
}

func TestLogQuery_ServerError(t *testing.T) {
	t.Parallel()

	l := newTestLogQuery(t, 5, 20, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := l.Check(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestLogQuery_FailedQueryStatus(t *testing.T) {
	t.Parallel()

	l := newTestLogQuery(t, 5, 20, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"status":"error","data":{}}`)
	})

	if _, err := l.Check(context.Background()); err == nil {
		t.Fatal("expected error for non-success loki status")
	}
}
