package httpx

import "github.com/prometheus/client_golang/prometheus"

var (
	HttpRequestDurHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "The latency of the HTTP requests.",
	}, []string{"route", "method", "code"})
	HttpResponseSizeHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "The size of the HTTP responses.",
		// 128B up to 32MB
		Buckets: prometheus.ExponentialBuckets(128, 4, 10),
	}, []string{"route", "method", "code"})
	HttpRequestsInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "http",
		Name:      "requests_inflight",
		Help:      "The number of inflight requests being handled at the same time.",
	}, []string{"route"})
)

func RegisterMetrics(registerer prometheus.Registerer) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(HttpRequestDurHistogram)
	registerer.MustRegister(HttpResponseSizeHistogram)
	registerer.MustRegister(HttpRequestsInflight)
}
