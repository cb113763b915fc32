// Package observability exposes crawl counters as Prometheus metrics.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks operational metrics for one crawl session. Each instance
// owns its registry so sessions and tests do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	PagesTotal     *prometheus.CounterVec // status: ok, failed, skipped
	CardsFound     prometheus.Counter
	RecordsKept    prometheus.Counter
	RecordsDropped prometheus.Counter
	FlushesTotal   *prometheus.CounterVec // result: ok, failed, empty
	FetchDuration  prometheus.Histogram
	ResultSetSize  prometheus.Gauge

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance with its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "divan_pages_total",
			Help: "Listing pages processed, by outcome.",
		}, []string{"status"}),
		CardsFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "divan_cards_found_total",
			Help: "Product cards located on fetched pages.",
		}),
		RecordsKept: factory.NewCounter(prometheus.CounterOpts{
			Name: "divan_records_kept_total",
			Help: "Records admitted by the normalizer.",
		}),
		RecordsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "divan_records_dropped_total",
			Help: "Records rejected by the normalizer.",
		}),
		FlushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "divan_flushes_total",
			Help: "Output flushes, by result.",
		}, []string{"result"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "divan_fetch_duration_seconds",
			Help:    "Duration of page fetches.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ResultSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "divan_result_set_size",
			Help: "Records accumulated in the current session.",
		}),
		logger: logger.With("component", "metrics"),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server in the background. The
// returned server should be shut down with Shutdown.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops a server started by StartServer.
func (m *Metrics) Shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown", "error", err)
	}
}
