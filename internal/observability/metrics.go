// Package observability provides Prometheus metrics for the watcher.
package observability

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mempoolscope"

// Metrics holds the watcher metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Bus metrics
	EventsPublished *prometheus.CounterVec
	BusLagSkipped   prometheus.Counter

	// Ingestion metrics
	ResolutionFailures *prometheus.CounterVec

	// Dispatch metrics
	Transactions  *prometheus.CounterVec
	HandlerPanics prometheus.Counter
	CurrentBlock  prometheus.Gauge
	BaseFee       prometheus.Gauge
	NextBaseFee   prometheus.Gauge

	// Analysis metrics
	Analyses         *prometheus.CounterVec
	AnalysisErrors   *prometheus.CounterVec
	BalanceChanges   *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram

	// Supervisor metrics
	TaskExits *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Events published on the bus by kind",
		}, []string{"kind"}),
		BusLagSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "lag_skipped_events_total",
			Help:      "Events skipped by a lagging subscriber",
		}),
		ResolutionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "resolution_failures_total",
			Help:      "Pending transaction hashes that could not be resolved",
		}, []string{"reason"}),
		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "transactions_total",
			Help:      "Transactions seen by the dispatcher by admission decision",
		}, []string{"decision"}),
		HandlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "handler_panics_total",
			Help:      "Recovered panics in event handlers",
		}),
		CurrentBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "current_block",
			Help:      "Number of the latest observed block",
		}),
		BaseFee: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "base_fee_wei",
			Help:      "Base fee per gas of the latest observed block",
		}),
		NextBaseFee: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "next_base_fee_wei",
			Help:      "Predicted base fee per gas of the next block",
		}),
		Analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Completed analyses by outcome",
		}, []string{"outcome"}),
		AnalysisErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "errors_total",
			Help:      "Failed analyses by kind",
		}, []string{"kind"}),
		BalanceChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "balance_changes_total",
			Help:      "Classified pool balance changes by direction",
		}, []string{"direction"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Time spent tracing and classifying one transaction",
			Buckets:   prometheus.DefBuckets,
		}),
		TaskExits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "task_exits_total",
			Help:      "Supervised task exits by task and result",
		}, []string{"task", "result"}),
	}
}

func (m *Metrics) ObservePublished(kind string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveLag(skipped uint64) {
	if m == nil {
		return
	}
	m.BusLagSkipped.Add(float64(skipped))
}

func (m *Metrics) ObserveResolutionFailure(reason string) {
	if m == nil {
		return
	}
	m.ResolutionFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveDecision(decision string) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObservePanic() {
	if m == nil {
		return
	}
	m.HandlerPanics.Inc()
}

// ObserveBlock updates the block gauges. Fees above float64 precision are approximated.
func (m *Metrics) ObserveBlock(number uint64, baseFee, nextBaseFee *big.Int) {
	if m == nil {
		return
	}
	m.CurrentBlock.Set(float64(number))
	m.BaseFee.Set(bigToFloat(baseFee))
	m.NextBaseFee.Set(bigToFloat(nextBaseFee))
}

func (m *Metrics) ObserveAnalysis(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.Observe(seconds)
}

func (m *Metrics) ObserveAnalysisError(kind string) {
	if m == nil {
		return
	}
	m.AnalysisErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveBalanceChange(direction string) {
	if m == nil {
		return
	}
	m.BalanceChanges.WithLabelValues(direction).Inc()
}

func (m *Metrics) ObserveTaskExit(task, result string) {
	if m == nil {
		return
	}
	m.TaskExits.WithLabelValues(task, result).Inc()
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
