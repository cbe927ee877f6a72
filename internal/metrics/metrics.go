package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortexmotion_tick_duration_seconds",
			Help:    "Time spent in one scheduler tick",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .0167},
		},
	)

	ActiveTracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortexmotion_active_tracks",
			Help: "Number of tracks currently driven by the scheduler",
		},
	)

	IKIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortexmotion_ik_iterations",
			Help:    "Iterations used per IK solve",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"chain", "converged"},
	)

	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexmotion_actions_total",
			Help: "Total number of executed character actions",
		},
		[]string{"type"},
	)

	LookupFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cortexmotion_phoneme_lookup_fallbacks_total",
			Help: "Ideograph lookups that timed out or failed and used the neutral vowel",
		},
	)

	MotionEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cortexmotion_motion_evictions_total",
			Help: "Learned motions evicted from the library",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
