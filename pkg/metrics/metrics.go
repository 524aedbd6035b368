package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage metrics
	EventsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_events_total",
			Help: "Total number of events stored locally",
		},
	)

	HeadsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_heads_total",
			Help: "Total number of current DAG heads for this identity",
		},
	)

	MissingParentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_missing_parents_total",
			Help: "Total number of unresolved missing-parent references",
		},
	)

	MissingContentTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_missing_content_total",
			Help: "Total number of stored events with no content record, including events that carry no content",
		},
	)

	FollowersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_followers_total",
			Help: "Total number of followers of this identity",
		},
	)

	// p2p/RPC metrics
	RPCHandlersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_p2p_rpc_handlers_active",
			Help: "Number of RPC handlers currently executing across all connections",
		},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rostra_p2p_rpc_requests_total",
			Help: "Total number of RPC requests served, by RPC name and return code",
		},
		[]string{"rpc", "return_code"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rostra_p2p_rpc_request_duration_seconds",
			Help:    "RPC request handling duration in seconds, by RPC name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"rpc"},
	)

	ConnectionPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_p2p_connection_pool_size",
			Help: "Number of connections currently held open by the connection pool",
		},
	)

	// DHT metrics
	PublishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rostra_dht_publish_duration_seconds",
			Help:    "Time taken to publish the identity's signed packet in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rostra_dht_publish_failures_total",
			Help: "Total number of failed DHT publish attempts",
		},
	)

	ResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rostra_dht_resolve_duration_seconds",
			Help:    "Time taken to resolve a RostraId on the DHT in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Replication worker metrics
	HeadBroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rostra_head_broadcasts_total",
			Help: "Total number of head pushes sent to followers, by outcome",
		},
		[]string{"outcome"},
	)

	MissingEventsFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rostra_missing_events_fetched_total",
			Help: "Total number of missing events successfully pulled from peers",
		},
	)

	MissingContentFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rostra_missing_content_fetched_total",
			Help: "Total number of missing content payloads successfully pulled from peers",
		},
	)

	HeadMergesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rostra_head_merges_total",
			Help: "Total number of head-merge events authored to join divergent heads",
		},
	)

	// Multi-client metrics
	MultiClientLoadedIdentities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_multiclient_loaded_identities",
			Help: "Number of identities currently loaded in the multi-client LRU cache",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(HeadsTotal)
	prometheus.MustRegister(MissingParentsTotal)
	prometheus.MustRegister(MissingContentTotal)
	prometheus.MustRegister(FollowersTotal)

	prometheus.MustRegister(RPCHandlersActive)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)
	prometheus.MustRegister(ConnectionPoolSize)

	prometheus.MustRegister(PublishDuration)
	prometheus.MustRegister(PublishFailuresTotal)
	prometheus.MustRegister(ResolveDuration)

	prometheus.MustRegister(HeadBroadcastsTotal)
	prometheus.MustRegister(MissingEventsFetchedTotal)
	prometheus.MustRegister(MissingContentFetchedTotal)
	prometheus.MustRegister(HeadMergesTotal)

	prometheus.MustRegister(MultiClientLoadedIdentities)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
