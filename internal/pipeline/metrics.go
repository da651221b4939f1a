package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Definition
var (
	factorValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "factorlens_factor_value",
			Help: "Latest value of a factor for an instrument. NaN while the statistic is undefined.",
		},
		[]string{"instrument", "factor"},
	)
	factorThresholdViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factorlens_factor_threshold_violations_total",
			Help: "Total number of threshold violations detected for a factor.",
		},
		[]string{"factor", "comparison"}, // comparison: "<" or ">"
	)
	instrumentsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "factorlens_instruments_active",
			Help: "Number of instruments with a built factor graph.",
		},
	)
	instrumentsWarming = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "factorlens_instruments_warming",
			Help: "Number of instruments still filling their first window.",
		},
	)
	instrumentsExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factorlens_instruments_excluded_total",
			Help: "Instruments dropped from the run because their graph could not be built or updated.",
		},
		[]string{"stage"}, // stage: "init" or "update"
	)
	ticksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factorlens_ticks_dropped_total",
			Help: "Ticks discarded before reaching the factor graphs.",
		},
		[]string{"reason"},
	)
	batchApplySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "factorlens_batch_apply_seconds",
			Help:    "Time spent applying one batch of steps to every instrument graph.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
)
