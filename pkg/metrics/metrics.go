package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stkgate_sessions_active",
			Help: "Number of live stocker sessions",
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkgate_sessions_total",
			Help: "Total number of stocker sessions by exit reason",
		},
		[]string{"reason"},
	)

	SessionsByType = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stkgate_sessions_by_type",
			Help: "Live stocker sessions by carrier type",
		},
		[]string{"type"},
	)

	// Protocol metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkgate_requests_total",
			Help: "Total number of stocker requests by message type and result",
		},
		[]string{"type", "result"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stkgate_request_duration_seconds",
			Help:    "Stocker request handling duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	MalformedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stkgate_malformed_frames_total",
			Help: "Total number of frames rejected by the codec",
		},
	)

	// Backend (Ridian) metrics
	BackendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkgate_backend_calls_total",
			Help: "Total number of Ridian calls by outcome",
		},
		[]string{"outcome"},
	)

	BackendReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stkgate_backend_reconnects_total",
			Help: "Total number of Ridian reconnects",
		},
	)

	BackendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stkgate_backend_call_duration_seconds",
			Help:    "Ridian round trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Barcode metrics
	BarcodeReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkgate_barcode_reads_total",
			Help: "Total number of barcode reads by outcome",
		},
		[]string{"outcome"},
	)

	// Orchestration metrics
	Compensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkgate_compensations_total",
			Help: "Total number of rolled back directory mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkgate_notifications_total",
			Help: "Total number of lot-tracking notifications by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	AlertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stkgate_alerts_total",
			Help: "Total number of operator alerts by outcome",
		},
		[]string{"outcome"},
	)

	LogRecordsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stkgate_logship_dropped_total",
			Help: "Total number of protocol log records dropped by the shipper",
		},
	)
)

func init() {
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(SessionsByType)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(MalformedFrames)
	prometheus.MustRegister(BackendCalls)
	prometheus.MustRegister(BackendReconnects)
	prometheus.MustRegister(BackendDuration)
	prometheus.MustRegister(BarcodeReads)
	prometheus.MustRegister(Compensations)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(AlertsSent)
	prometheus.MustRegister(LogRecordsDropped)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
