package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linnemanlabs/beacon/internal/alert"
	"github.com/linnemanlabs/beacon/internal/intel"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", "claude-sonnet-4-5", WithBaseURL(srv.URL))
}

func textResponse(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":          "msg_1",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
	})
	return string(b)
}

func testContext() *intel.IncidentContext {
	return &intel.IncidentContext{
		AlertName: "DiskFull",
		Severity:  alert.SeverityCritical,
		Labels:    map[string]string{"host": "web-1"},
	}
}

func TestAnalyze_Success(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("anthropic-version header missing")
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "claude-sonnet-4-5" {
			t.Errorf("model = %v", req["model"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, textResponse(`[{"title":"Clear logs","description":"Rotate and compress /var/log","priority":"high","command":"journalctl --vacuum-size=1G"}]`))
	})

	recs, err := p.Analyze(context.Background(), testContext())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("recs = %d, want 1", len(recs))
	}
	if recs[0].Title != "Clear logs" {
		t.Errorf("Title = %q", recs[0].Title)
	}
	if recs[0].Priority != "high" {
		t.Errorf("Priority = %q, want high", recs[0].Priority)
	}
}

func TestAnalyze_StripsMarkdownFence(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, textResponse("Here you go:\n```json\n[{\"title\":\"Restart\",\"description\":\"x\",\"priority\":\"low\"}]\n```"))
	})

	recs, err := p.Analyze(context.Background(), testContext())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "Restart" {
		t.Errorf("recs = %+v, want one Restart entry", recs)
	}
}

func TestAnalyze_APIError(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusTooManyRequests)
	})

	if _, err := p.Analyze(context.Background(), testContext()); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestAnalyze_NoArrayInResponse(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, textResponse("I cannot help with that."))
	})

	if _, err := p.Analyze(context.Background(), testContext()); err == nil {
		t.Fatal("expected error when no array present")
	}
}
