// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package observability serves the controller's Prometheus metrics and
// health probes.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// ReadinessChecker reports whether the plugin repository has been built and
// requests can be dispatched.
type ReadinessChecker func() bool

// Metrics are the run loop's request metrics.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	ChainLength   prometheus.Histogram
}

// NewMetrics registers the controller metrics and the plugin dispatch
// metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yana_controller_requests_total",
				Help: "Total number of controller requests by first event and status",
			},
			[]string{"event", "status"},
		),
		ChainLength: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "yana_controller_chain_length",
				Help:    "Number of events sent per controller request",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.ChainLength)
	plugin.RegisterMetrics(reg)
	return m
}

// RecordRequest records one controller request: the event that started it,
// its status (ok, error or truncated) and how many events the chain sent.
func (m *Metrics) RecordRequest(event, status string, events int) {
	m.RequestsTotal.WithLabelValues(event, status).Inc()
	m.ChainLength.Observe(float64(events))
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr     string
	ready    ReadinessChecker
	registry *prometheus.Registry
	metrics  *Metrics

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// NewServer creates a server listening on addr once started. A nil ready
// checker reports ready.
func NewServer(addr string, ready ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		addr:     addr,
		ready:    ready,
		registry: registry,
		metrics:  NewMetrics(registry),
	}
}

// Metrics returns the metrics served by s.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens and serves in the background. Serve failures are sent on
// the returned channel, which is closed once the server stops.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return nil, oops.In("observability").With("addr", s.addr).Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.In("observability").With("addr", s.addr).Wrap(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", probe(nil))
	mux.HandleFunc("/healthz/readiness", probe(s.ready))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = listener
	s.http = srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "addr", listener.Addr().String(), "error", err)
			errCh <- err
		}
	}()

	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return oops.In("observability").With("addr", s.addr).Wrap(err)
	}
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// probe answers 200 when ready (or ready is nil) and 503 otherwise.
func probe(ready ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}
}
