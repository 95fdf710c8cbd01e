package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	LoadMilliamps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "powermon_load_milliamps",
			Help: "Last current reading taken from the sensor",
		},
	)

	OutageActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "powermon_outage_active",
			Help: "1 while a power outage episode is open, 0 otherwise",
		},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powermon_state_transitions_total",
			Help: "Number of monitor state transitions by target state",
		},
		[]string{"state"},
	)

	SensorErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "powermon_sensor_read_errors_total",
			Help: "Number of failed sensor reads",
		},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powermon_notifications_total",
			Help: "Notification deliveries by channel, kind and result",
		},
		[]string{"channel", "kind", "result"},
	)

	NotificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powermon_notification_duration_seconds",
			Help:    "Time spent in a channel transport per delivery",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"channel"},
	)

	SMSReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "powermon_sms_received_total",
			Help: "Number of inbound text messages extracted from the modem line",
		},
	)

	TotalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powermon_http_requests_total",
			Help: "Total number of HTTP requests to the status API",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powermon_http_request_duration_seconds",
			Help:    "Histogram of status API response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Register adds every collector to the default registry. Call it once at
// startup; collectors that are never registered still count, they are just
// not exported.
func Register() {
	prometheus.MustRegister(
		LoadMilliamps,
		OutageActive,
		Transitions,
		SensorErrors,
		Notifications,
		NotificationDuration,
		SMSReceived,
		TotalRequests,
		RequestDuration,
	)
}
