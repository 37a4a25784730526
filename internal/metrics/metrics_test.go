package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/1broseidon/tessera/internal/namespace"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Event("expose")
	m.ListenerPanic()
	m.CompositePass(time.Millisecond, 1)
	m.CompositeSkipped("throttled")
	m.SecurityViolation(namespace.Violation{Operation: namespace.OpFocus})
	m.SetManaged(3)
	m.SetNamespaces(2)
	if m.Registry() != nil {
		t.Error("nil metrics returned a registry")
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.Event("button_press")
	m.Event("button_press")
	m.CompositeSkipped("throttled")
	m.SecurityViolation(namespace.Violation{Operation: namespace.OpReparent})
	m.SetManaged(4)

	if got := testutil.ToFloat64(m.events.WithLabelValues("button_press")); got != 2 {
		t.Errorf("events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.compositeSkips.WithLabelValues("throttled")); got != 1 {
		t.Errorf("skips = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.violations.WithLabelValues(namespace.OpReparent)); got != 1 {
		t.Errorf("violations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.managedWindows); got != 4 {
		t.Errorf("managed = %v, want 4", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.CompositePass(2*time.Millisecond, 3)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "tessera_compositor_passes_total 1") {
		t.Errorf("passes counter missing from output")
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", health.StatusCode)
	}
}
