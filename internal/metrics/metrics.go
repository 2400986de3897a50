// Package metrics registers the Prometheus collectors of the provisioning service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "maasprov"

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Total number of accepted provisioning jobs by selection mode",
		},
		[]string{"mode"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total number of provisioning jobs that reached a terminal status",
		},
		[]string{"status"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Time from runner start to terminal status",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
		},
	)

	resourceRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "resource_rejections_total",
			Help:      "Auto-selection requests rejected for insufficient machines",
		},
	)

	deploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "machines",
			Name:      "deployments_total",
			Help:      "Per-machine outcomes recorded by the job runner",
		},
		[]string{"result"},
	)

	maasAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maas",
			Name:      "api_calls_total",
			Help:      "Total number of MAAS API calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	maasAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "maas",
			Name:      "api_latency_seconds",
			Help:      "Latency of MAAS API calls",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		jobsSubmittedTotal,
		jobsFinishedTotal,
		jobDuration,
		resourceRejectionsTotal,
		deploymentsTotal,
		maasAPICallsTotal,
		maasAPILatency,
	)
}

// RecordJobSubmitted counts an accepted job; mode is "manual" or "auto"
func RecordJobSubmitted(mode string) {
	jobsSubmittedTotal.WithLabelValues(mode).Inc()
}

// RecordJobFinished counts a terminal job and observes its run time
func RecordJobFinished(status string, elapsed time.Duration) {
	jobsFinishedTotal.WithLabelValues(status).Inc()
	jobDuration.Observe(elapsed.Seconds())
}

// RecordResourceRejection counts a 409 auto-selection rejection
func RecordResourceRejection() {
	resourceRejectionsTotal.Inc()
}

// RecordDeployment counts a per-machine result (deployed, failed, skipped, not_found)
func RecordDeployment(result string) {
	deploymentsTotal.WithLabelValues(result).Inc()
}

// RecordMAASCall records the outcome and latency of a MAAS API call
func RecordMAASCall(operation string, err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	maasAPICallsTotal.WithLabelValues(operation, result).Inc()
	maasAPILatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
