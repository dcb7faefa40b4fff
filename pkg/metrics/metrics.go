package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DefaultRegisterer and DefaultGatherer are the implementations of the
	// prometheus Registerer and Gatherer interfaces that all metrics operations
	// will use. They are variables so that packages that embed this library can
	// replace them at runtime, instead of having to pass around specific
	// registries.
	DefaultRegisterer = prometheus.DefaultRegisterer
	DefaultGatherer   = prometheus.DefaultGatherer
)

var (
	VisiblePeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerloc_visible_peers",
		Help: "Number of peer addresses currently visible on the node.",
	})
	QueuingPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerloc_queuing_peers",
		Help: "Number of peers waiting for a location to be resolved.",
	})
	ResolvingPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerloc_resolving_peers",
		Help: "Number of peers with a location resolution in flight.",
	})
	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerloc_resolutions_total",
		Help: "Total number of finished peer address resolutions.",
	}, []string{"result", "reason"})
	LookupDurHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "peerloc_lookup_duration_seconds",
		Help: "The duration of calls to the location lookup service.",
	}, []string{"result"})
	InvalidTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerloc_invalid_transitions_total",
		Help: "Total number of rejected store transitions.",
	}, []string{"action"})
)

func Register() {
	DefaultRegisterer.MustRegister(VisiblePeers)
	DefaultRegisterer.MustRegister(QueuingPeers)
	DefaultRegisterer.MustRegister(ResolvingPeers)
	DefaultRegisterer.MustRegister(ResolutionsTotal)
	DefaultRegisterer.MustRegister(LookupDurHistogram)
	DefaultRegisterer.MustRegister(InvalidTransitionsTotal)
}
