// Package monitor holds the Prometheus collectors of the relay.
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "grok_relay"

var (
	processorRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_runs_total",
			Help:      "Total number of upstream responses processed",
		},
		[]string{"processor", "status"}, // status: success, error
	)

	processorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processor_duration_seconds",
			Help:      "Time spent translating one upstream response",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"processor"},
	)

	upstreamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_events_total",
			Help:      "Decoded upstream events by kind",
		},
		[]string{"processor", "kind"},
	)

	droppedLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_dropped_lines_total",
			Help:      "Upstream lines skipped because they were not valid JSON",
		},
		[]string{"processor"},
	)

	assetDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_downloads_total",
			Help:      "Asset materializations by media kind and outcome",
		},
		[]string{"kind", "status"}, // status: downloaded, cached, error
	)

	relayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Relay requests by mode, model and outcome",
		},
		[]string{"mode", "model", "status"}, // status: success, client_error, upstream_error
	)

	httpRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code",
			Buckets:   []float64{.05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"route", "status"},
	)

	httpFirstByte = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_first_byte_seconds",
			Help:      "Time until the first response byte was written",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)

	assetSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "asset_sessions_open",
			Help:      "Materializer sessions currently held by processors",
		},
	)
)

func init() {
	prometheus.MustRegister(
		processorRuns,
		processorDuration,
		upstreamEvents,
		droppedLines,
		assetDownloads,
		relayRequests,
		httpRequests,
		httpFirstByte,
		assetSessions,
	)
}

// ObserveProcessorRun records the outcome and duration of one processor run.
func ObserveProcessorRun(processor string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	processorRuns.WithLabelValues(processor, status).Inc()
	processorDuration.WithLabelValues(processor).Observe(elapsed.Seconds())
}

func RecordUpstreamEvent(processor, kind string) {
	upstreamEvents.WithLabelValues(processor, kind).Inc()
}

func RecordDroppedLine(processor string) {
	droppedLines.WithLabelValues(processor).Inc()
}

func RecordAssetDownload(kind, status string) {
	assetDownloads.WithLabelValues(kind, status).Inc()
}

// AssetSessionOpened and AssetSessionClosed track materializer handles.
func AssetSessionOpened() { assetSessions.Inc() }
func AssetSessionClosed() { assetSessions.Dec() }

// RecordRelayRequest classifies a finished relay by the status code it was
// answered with. Zero means the handler succeeded.
func RecordRelayRequest(mode, model string, statusCode int) {
	status := "success"
	switch {
	case statusCode == 0:
	case statusCode >= 500:
		status = "upstream_error"
	default:
		status = "client_error"
	}
	relayRequests.WithLabelValues(mode, model, status).Inc()
}

func ObserveRequest(route, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, status).Observe(elapsed.Seconds())
}

func ObserveFirstByte(route string, elapsed time.Duration) {
	httpFirstByte.WithLabelValues(route).Observe(elapsed.Seconds())
}
