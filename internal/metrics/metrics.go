// Package metrics records per-stage outcome counters and duration
// histograms for the Pipeline Engine (spec §4.4 "Stage metrics", testable
// property #5 "Metric truth").
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "launchdeck",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of a single pipeline stage, labeled by outcome.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage", "outcome"})

	stageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launchdeck",
		Subsystem: "pipeline",
		Name:      "stage_total",
		Help:      "Count of pipeline stage completions, labeled by outcome.",
	}, []string{"stage", "outcome"})

	failoverTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launchdeck",
		Subsystem: "broker",
		Name:      "failover_total",
		Help:      "Count of Model Broker failovers from primary to backup.",
	}, []string{})
)

// RecordStage records exactly one outcome for one stage invocation. Callers
// must never call this with OutcomeSuccess for a stage that returned an
// error — the Pipeline Engine's stage wrapper is the only caller and always
// derives outcome from the stage's actual return value.
func RecordStage(stage string, outcome string, d time.Duration) {
	stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
	stageTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordFailover increments the broker failover counter. Idempotent calls
// are the caller's responsibility — the Broker calls this once per Broker,
// on its one transition from primary to backup.
func RecordFailover() {
	failoverTotal.WithLabelValues().Inc()
}
