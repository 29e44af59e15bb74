// Package metrics exports Prometheus metrics for the storage engine and
// provides an instrumented kv.Engine decorator that records per-op
// counts and latencies.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/4lexvav/logkv/core"
	"github.com/4lexvav/logkv/internal/logging"
)

var (
	OpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logkv_operations_total",
		Help: "Engine operations by op and outcome.",
	}, []string{"op", "outcome"})

	OpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "logkv_operation_duration_seconds",
		Help:    "Engine operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	LiveKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "logkv_live_keys",
		Help: "Number of keys in the in-memory index.",
	})

	Segments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "logkv_segments",
		Help: "Number of segment files, active included.",
	})

	UncompactedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "logkv_uncompacted_bytes",
		Help: "Bytes in segment files no longer reachable from the index.",
	})

	Compactions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "logkv_compactions_total",
		Help: "Compaction passes completed since the engine opened.",
	})
)

func init() {
	prometheus.MustRegister(OpsTotal, OpDuration, LiveKeys, Segments, UncompactedBytes, Compactions)
}

// StartExporter serves the Prometheus scrape endpoint on addr in the
// background.
func StartExporter(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logging.Info("metrics exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logging.Error("metrics exporter stopped: %v", err)
		}
	}()
}

// StartStatsLoop periodically refreshes the engine gauges from an engine
// stats snapshot until ctx is cancelled.
func StartStatsLoop(ctx context.Context, stats func() core.Stats, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s := stats()
				LiveKeys.Set(float64(s.Keys))
				Segments.Set(float64(s.Segments))
				UncompactedBytes.Set(float64(s.UncompactedBytes))
				Compactions.Set(float64(s.Compactions))
			case <-ctx.Done():
				return
			}
		}
	}()
}
