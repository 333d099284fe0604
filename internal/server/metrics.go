package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestLatency labels: route (gin full path), status (HTTP code class)
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "polyfit",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "polyfit",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the evolve rate limiter",
	})

	runsConfigured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polyfit",
		Subsystem: "runs",
		Name:      "configured_total",
		Help:      "Runs configured, by model kind",
	}, []string{"kind"})

	// runsFinished labels: kind, state (converged, exhausted, failed)
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polyfit",
		Subsystem: "runs",
		Name:      "finished_total",
		Help:      "Evolve calls finished, by model kind and final state",
	}, []string{"kind", "state"})

	runGenerations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "polyfit",
		Subsystem: "runs",
		Name:      "generations",
		Help:      "Generations executed per evolve call",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
	})

	runBestError = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "polyfit",
		Subsystem: "runs",
		Name:      "final_best_error",
		Help:      "Mean absolute error of the best organism when evolve finishes",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	liveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polyfit",
		Subsystem: "runs",
		Name:      "live",
		Help:      "Run handles currently registered",
	})
)
