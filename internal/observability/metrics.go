package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

// Remote call outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)

// Post dispositions used as the "disposition" label.
const (
	PostPublished = "published"
	PostRepost    = "repost"
	PostMalformed = "malformed"
	PostFailed    = "failed"
)

var (
	// remoteCalls counts calls to the timeline source, record store and
	// anchoring service by operation and outcome.
	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchord_remote_calls_total",
			Help: "Total number of calls to remote collaborators.",
		},
		[]string{"service", "op", "outcome"},
	)

	remoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anchord_remote_call_duration_seconds",
			Help:    "Duration of calls to remote collaborators in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "op"},
	)

	// cycles counts terminal account-cycles. "reached" is the last phase
	// completed, which for failures pinpoints the broken phase.
	cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchord_cycles_total",
			Help: "Total number of account-cycles by terminal state.",
		},
		[]string{"state", "reached"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "anchord_cycle_duration_seconds",
			Help:    "Duration of account-cycles in seconds.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	cyclesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "anchord_cycles_inflight",
			Help: "Current number of running account-cycles.",
		},
	)

	posts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchord_posts_total",
			Help: "Fetched posts by disposition.",
		},
		[]string{"disposition"},
	)

	anchors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchord_anchors_total",
			Help: "Reconciled anchors by source (ledger, existing, created).",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(remoteCalls, remoteLatency, cycles, cycleDuration, cyclesInFlight, posts, anchors)
}

// ObserveRemoteCall records one remote call.
func ObserveRemoteCall(service, op, outcome string, d time.Duration) {
	remoteCalls.WithLabelValues(service, op, outcome).Inc()
	remoteLatency.WithLabelValues(service, op).Observe(d.Seconds())
}

// CycleStarted increments the in-flight gauge and returns its matching decrement.
func CycleStarted() func() {
	cyclesInFlight.Inc()
	return cyclesInFlight.Dec
}

// ObserveCycle records a terminal cycle result.
func ObserveCycle(r domain.CycleResult) {
	cycles.WithLabelValues(string(r.State), string(r.Reached)).Inc()
	if d := r.Duration(); d > 0 {
		cycleDuration.Observe(d.Seconds())
	}
}

// CountPosts adds n posts with the given disposition.
func CountPosts(disposition string, n int) {
	if n > 0 {
		posts.WithLabelValues(disposition).Add(float64(n))
	}
}

// CountAnchor records one reconciled anchor from source.
func CountAnchor(source string) {
	anchors.WithLabelValues(source).Inc()
}
