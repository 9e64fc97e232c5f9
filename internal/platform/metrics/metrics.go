package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "d21"

// Registry holds the engine's process metrics on its own registerer so tests
// and multiple servers in one process do not collide.
type Registry struct {
	registry        *prometheus.Registry
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	outboxPublished prometheus.Counter
	outboxFailures  prometheus.Counter
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Election operations by name and result code.",
		}, []string{"operation", "code"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Election operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox rows relayed to the broker.",
		}),
		outboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relay_failures_total",
			Help:      "Outbox relay cycles that stopped on an error.",
		}),
	}
	r.registry.MustRegister(
		r.commands,
		r.commandDuration,
		r.outboxPublished,
		r.outboxFailures,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveOperation records one operation outcome. code is "ok" on success.
func (r *Registry) ObserveOperation(operation string, code string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(operation, code).Inc()
	r.commandDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveRelay(published int, err error) {
	if r == nil {
		return
	}
	r.outboxPublished.Add(float64(published))
	if err != nil {
		r.outboxFailures.Inc()
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// NewServer exposes Handler at /metrics on addr.
func (r *Registry) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Serve runs the metrics endpoint until ctx is cancelled, then shuts it down.
func (r *Registry) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	server := r.NewServer(addr)
	logger.Info("metrics server starting",
		"event", "metrics_server_starting",
		"module", "internal/platform/metrics",
		"layer", "platform",
		"addr", addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
