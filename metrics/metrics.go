package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type LofimixMetrics struct {
	RenderRequestCount       prometheus.Counter
	RenderRequestDurationSec *prometheus.SummaryVec
	RenderJobResults         *prometheus.CounterVec
	RenderStageDurationSec   *prometheus.SummaryVec
	QueueLength              prometheus.Gauge
	ActiveStreams            prometheus.Gauge
	StreamStartResults       *prometheus.CounterVec
	HTTPRequestsInFlight     prometheus.Gauge
}

func NewMetrics() *LofimixMetrics {
	m := &LofimixMetrics{
		// /api/render request metrics
		RenderRequestCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "render_request_count",
			Help: "The total number of requests to /api/render",
		}),
		RenderRequestDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "render_request_duration_seconds",
			Help: "The latency of the requests made to /api/render in seconds broken up by success and status code",
		}, []string{"success", "status_code"}),

		// Pipeline metrics
		RenderJobResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "render_job_results",
			Help: "Terminal render job outcomes, broken up by done/failed/canceled",
		}, []string{"outcome"}),
		RenderStageDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "render_stage_duration_seconds",
			Help: "The time each pipeline stage takes to run, broken up by stage and success",
		}, []string{"stage", "success"}),
		QueueLength: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "render_queue_length",
			Help: "Number of render jobs waiting for the single worker slot",
		}),

		// Stream supervisor metrics
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "active_streams",
			Help: "Number of live push processes currently running",
		}),
		StreamStartResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_start_results",
			Help: "Stream start attempts broken up by result",
		}, []string{"result"}),

		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "The number of HTTP requests currently being served",
		}),
	}
	return m
}

var Metrics = NewMetrics()
