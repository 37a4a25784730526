// Package metrics exposes window manager counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/tessera/internal/namespace"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	listenerPanics  prometheus.Counter
	compositePasses prometheus.Counter
	compositeTime   prometheus.Histogram
	compositeSkips  *prometheus.CounterVec
	violations      *prometheus.CounterVec
	managedWindows  prometheus.Gauge
	namespaces      prometheus.Gauge
}

// New creates and registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tessera",
			Name:      "x_events_total",
			Help:      "X events dispatched, by event type",
		}, []string{"type"}),
		listenerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tessera",
			Name:      "listener_panics_total",
			Help:      "Listener panics recovered during dispatch",
		}),
		compositePasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tessera",
			Subsystem: "compositor",
			Name:      "passes_total",
			Help:      "Composite passes presented",
		}),
		compositeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tessera",
			Subsystem: "compositor",
			Name:      "pass_duration_seconds",
			Help:      "Time spent in a composite pass",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
		}),
		compositeSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tessera",
			Subsystem: "compositor",
			Name:      "skipped_total",
			Help:      "Composite requests dropped, by reason",
		}, []string{"reason"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tessera",
			Subsystem: "namespace",
			Name:      "violations_total",
			Help:      "Denied cross-namespace operations",
		}, []string{"operation"}),
		managedWindows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tessera",
			Name:      "managed_windows",
			Help:      "Currently framed client windows",
		}),
		namespaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tessera",
			Subsystem: "namespace",
			Name:      "count",
			Help:      "Known namespaces",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events,
		m.listenerPanics,
		m.compositePasses,
		m.compositeTime,
		m.compositeSkips,
		m.violations,
		m.managedWindows,
		m.namespaces,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Event counts one dispatched event of kind.
func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// ListenerPanic counts a recovered panic.
func (m *Metrics) ListenerPanic() {
	if m == nil {
		return
	}
	m.listenerPanics.Inc()
}

// CompositePass records a presented pass.
func (m *Metrics) CompositePass(d time.Duration, _ int) {
	if m == nil {
		return
	}
	m.compositePasses.Inc()
	m.compositeTime.Observe(d.Seconds())
}

// CompositeSkipped records a dropped pass.
func (m *Metrics) CompositeSkipped(reason string) {
	if m == nil {
		return
	}
	m.compositeSkips.WithLabelValues(reason).Inc()
}

// SecurityViolation counts a denied operation.
func (m *Metrics) SecurityViolation(v namespace.Violation) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(v.Operation).Inc()
}

// SetManaged sets the managed window gauge.
func (m *Metrics) SetManaged(n int) {
	if m == nil {
		return
	}
	m.managedWindows.Set(float64(n))
}

// SetNamespaces sets the namespace gauge.
func (m *Metrics) SetNamespaces(n int) {
	if m == nil {
		return
	}
	m.namespaces.Set(float64(n))
}

// Handler serves /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
