package source

import (
	"testing"

	"github.com/linnemanlabs/beacon/internal/alert"
)

func TestGenerateFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	labels := map[string]string{"alertname": "HighCPU", "severity": "critical", "host": "web-1"}

	first := GenerateFingerprint(labels, "HighCPU")
	for i := 0; i < 50; i++ {
		// rebuild the map each round to vary iteration order
		rebuilt := map[string]string{}
		for k, v := range labels {
			rebuilt[k] = v
		}
		if got := GenerateFingerprint(rebuilt, "HighCPU"); got != first {
			t.Fatalf("fingerprint = %q, want %q (round %d)", got, first, i)
		}
	}
}

func TestGenerateFingerprint_Length(t *testing.T) {
	t.Parallel()

	fp := GenerateFingerprint(map[string]string{"a": "b"}, "x")
	if len(fp) != fingerprintLen {
		t.Errorf("len(fingerprint) = %d, want %d", len(fp), fingerprintLen)
	}
	for _, r := range fp {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Errorf("fingerprint %q contains non-hex rune %q", fp, r)
		}
	}
}

func TestGenerateFingerprint_DistinguishesInputs(t *testing.T) {
	t.Parallel()

	a := GenerateFingerprint(map[string]string{"k": "v"}, "alert-a")
	b := GenerateFingerprint(map[string]string{"k": "v"}, "alert-b")
	if a == b {
		t.Errorf("different names produced the same fingerprint %q", a)
	}

	c := GenerateFingerprint(map[string]string{"k": "v2"}, "alert-a")
	if a == c {
		t.Errorf("different labels produced the same fingerprint %q", a)
	}
}

func TestGenerateFingerprint_KeyValueBoundary(t *testing.T) {
	t.Parallel()

	// {"ab": "c"} and {"a": "bc"} must not collide
	a := GenerateFingerprint(map[string]string{"ab": "c"}, "n")
	b := GenerateFingerprint(map[string]string{"a": "bc"}, "n")
	if a == b {
		t.Errorf("boundary collision: %q", a)
	}
}

func TestWorse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b, want alert.Severity
	}{
		{alert.SeverityWarning, alert.SeverityCritical, alert.SeverityCritical},
		{alert.SeverityCritical, alert.SeverityInfo, alert.SeverityCritical},
		{alert.SeverityInfo, alert.SeverityWarning, alert.SeverityWarning},
		{alert.SeverityInfo, alert.SeverityInfo, alert.SeverityInfo},
	}
	for _, tt := range tests {
		if got := alert.Worse(tt.a, tt.b); got != tt.want {
			t.Errorf("Worse(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}
