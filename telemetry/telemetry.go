// Package telemetry exposes Prometheus metrics for serve mode.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors updated by the serve pipeline.
type Metrics struct {
	ManuscriptsValidated *prometheus.CounterVec
	ValidationFailures   prometheus.Counter
	ShardsIndexed        prometheus.Counter
	RecordsRead          prometheus.Counter
	WatchEventsDropped   prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		ManuscriptsValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aces",
			Name:      "manuscripts_validated_total",
			Help:      "Manuscripts validated, by outcome.",
		}, []string{"status"}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aces",
			Name:      "validation_failures_total",
			Help:      "Individual check failures across all manuscripts.",
		}),
		ShardsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aces",
			Name:      "shards_indexed_total",
			Help:      "TFRecord shards indexed.",
		}),
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aces",
			Name:      "records_read_total",
			Help:      "TFRecord records read while indexing.",
		}),
		WatchEventsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aces",
			Name:      "watch_events_dropped",
			Help:      "Watch events dropped due to channel overflow.",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.ManuscriptsValidated,
		m.ValidationFailures,
		m.ShardsIndexed,
		m.RecordsRead,
		m.WatchEventsDropped,
	)

	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server serves the /metrics endpoint.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server on the given address.
func NewServer(addr string, metrics *Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Metrics server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
