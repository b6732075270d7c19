package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion outcomes
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// ApplicationMetrics tracks profile image ingestion and sessions
type ApplicationMetrics struct {
	ImageIngestionsTotal *prometheus.CounterVec
	ImageIngestedBytes   *prometheus.HistogramVec
	ImageFetchDuration   *prometheus.HistogramVec
	LoginsTotal          *prometheus.CounterVec
}

func newApplicationMetrics() *ApplicationMetrics {
	return &ApplicationMetrics{
		ImageIngestionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_image_ingestions_total",
				Help: "Profile image ingestion attempts by source, outcome and error code",
			},
			[]string{"source", "outcome", "code"},
		),
		ImageIngestedBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profile_image_ingested_bytes",
				Help:    "Size of accepted profile images",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 7),
			},
			[]string{"source"},
		),
		ImageFetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profile_image_fetch_duration_seconds",
				Help:    "Latency of remote profile image fetches",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"result"},
		),
		LoginsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
	}
}

// RecordIngestion counts one ingestion attempt
func RecordIngestion(source, outcome, code string) {
	Get().ImageIngestionsTotal.WithLabelValues(source, outcome, code).Inc()
}

// RecordIngestedBytes observes the size of an accepted image
func RecordIngestedBytes(source string, size int) {
	Get().ImageIngestedBytes.WithLabelValues(source).Observe(float64(size))
}

// RecordFetch observes a remote fetch
func RecordFetch(result string, seconds float64) {
	Get().ImageFetchDuration.WithLabelValues(result).Observe(seconds)
}

// RecordLogin counts a login attempt
func RecordLogin(result string) {
	Get().LoginsTotal.WithLabelValues(result).Inc()
}
