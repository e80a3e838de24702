package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PreviewDurationMs records how long a repricing preview computation takes.
	PreviewDurationMs prometheus.Histogram
	// PreviewLineCount records how many catalog lines each preview covered.
	PreviewLineCount prometheus.Histogram
	// ApplyTotal counts apply outcomes.
	ApplyTotal *prometheus.CounterVec
	// ApplyItemsTotal counts catalog items repriced by successful applies.
	ApplyItemsTotal prometheus.Counter
	// DriftGauge exposes the cumulative drift percentage per organization.
	DriftGauge *prometheus.GaugeVec
	// DriftVerifyTotal counts drift verification outcomes.
	DriftVerifyTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PreviewDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adjust_preview_duration_ms",
			Help:      "Latency of repricing preview computations in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		})
		PreviewLineCount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adjust_preview_lines",
			Help:      "Number of catalog lines covered per preview.",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
		})
		ApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjust_apply_total",
			Help:      "Count of adjustment apply outcomes.",
		}, []string{"result"})
		ApplyItemsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjust_apply_items_total",
			Help:      "Total catalog items repriced by successful applies.",
		})
		DriftGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adjust_cumulative_drift_percent",
			Help:      "Cumulative drift between actual adjustments and official inflation.",
		}, []string{"org"})
		DriftVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjust_drift_verify_total",
			Help:      "Count of drift verification outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, PreviewDurationMs, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PreviewDurationMs = v
			}
		})
		mustRegisterCollector(reg, PreviewLineCount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PreviewLineCount = v
			}
		})
		mustRegisterCollector(reg, ApplyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ApplyTotal = v
			}
		})
		mustRegisterCollector(reg, ApplyItemsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ApplyItemsTotal = v
			}
		})
		mustRegisterCollector(reg, DriftGauge, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.GaugeVec); ok {
				DriftGauge = v
			}
		})
		mustRegisterCollector(reg, DriftVerifyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DriftVerifyTotal = v
			}
		})
	})
}

// ObservePreview records one preview computation. Safe to call before
// registration; unregistered collectors make it a no-op.
func ObservePreview(d time.Duration, lines int) {
	if PreviewDurationMs != nil {
		PreviewDurationMs.Observe(float64(d.Milliseconds()))
	}
	if PreviewLineCount != nil {
		PreviewLineCount.Observe(float64(lines))
	}
}

// RecordApply records one apply outcome and, on success, the item count.
func RecordApply(result string, items int) {
	if ApplyTotal != nil {
		ApplyTotal.WithLabelValues(result).Inc()
	}
	if ApplyItemsTotal != nil && result == "ok" && items > 0 {
		ApplyItemsTotal.Add(float64(items))
	}
}

// SetDriftGauge publishes the latest cumulative drift for an organization.
func SetDriftGauge(org string, value float64) {
	if DriftGauge != nil {
		DriftGauge.WithLabelValues(org).Set(value)
	}
}

// RecordDriftVerify records one verification outcome.
func RecordDriftVerify(result string) {
	if DriftVerifyTotal != nil {
		DriftVerifyTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
