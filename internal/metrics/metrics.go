// Package metrics exposes benchmark progress and results as prometheus metrics.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manifest-network/benchie/internal/models"
)

const namespace = "benchie"

type Metrics struct {
	registry *prometheus.Registry

	broadcastTxs    prometheus.Counter
	broadcastErrors prometheus.Counter
	completed       prometheus.Gauge
	target          prometheus.Gauge
	duration        prometheus.Gauge
	blocks          prometheus.Gauge
	throughput      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		broadcastTxs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_transactions_total",
			Help:      "Transactions submitted to the source chain.",
		}),
		broadcastErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_errors_total",
			Help:      "Failed broadcast calls.",
		}),
		completed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "completed_transactions",
			Help:      "Completion events observed on the target network.",
		}),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_transactions",
			Help:      "Completion events required to finish the run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time between broadcast and completion of the last run.",
		}),
		blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_blocks",
			Help:      "Blocks produced between broadcast and completion of the last run.",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_transactions_per_second",
			Help:      "Completed transactions per second of the last run.",
		}),
	}
	m.registry.MustRegister(
		m.broadcastTxs, m.broadcastErrors, m.completed, m.target, m.duration, m.blocks, m.throughput,
	)
	return m
}

// Registry returns the registry holding the benchmark collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Broadcasted(n int) {
	if m == nil {
		return
	}
	m.broadcastTxs.Add(float64(n))
}

func (m *Metrics) BroadcastFailed() {
	if m == nil {
		return
	}
	m.broadcastErrors.Inc()
}

// SetProgress records completed out of target.
func (m *Metrics) SetProgress(completed, target int) {
	if m == nil {
		return
	}
	m.completed.Set(float64(completed))
	m.target.Set(float64(target))
}

// ObserveResult records the final metrics of a run.
func (m *Metrics) ObserveResult(r *models.Result) {
	if m == nil || r == nil {
		return
	}
	m.SetProgress(r.Completed, r.Count)
	m.duration.Set(r.TotalTime.Seconds())
	m.blocks.Set(float64(r.TotalBlocks))
	m.throughput.Set(r.TxPerSecond())
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if m == nil {
		return errors.New("metrics are not initialized")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down metrics server", "error", err)
		}
	}()

	slog.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
