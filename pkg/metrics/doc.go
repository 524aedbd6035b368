/*
Package metrics provides Prometheus metrics collection and exposition for Rostra.

The metrics package defines and registers all Rostra metrics using the Prometheus
client library, providing observability into storage growth, replication
progress, p2p connection health, and DHT resolution latency. Metrics are
exposed via an HTTP endpoint for scraping by Prometheus servers.

# Metrics Catalog

Only the storage metrics below are updated, by Collector. The p2p/RPC, DHT,
replication-worker and multi-client metrics are registered and exported,
but nothing in this module sets them, so they stay at zero.

Storage Metrics:

rostra_events_total:
  - Type: Gauge
  - Description: Total number of events stored locally

rostra_heads_total:
  - Type: Gauge
  - Description: Total number of current DAG heads for this identity

rostra_missing_parents_total:
  - Type: Gauge
  - Description: Total number of unresolved missing-parent references

rostra_missing_content_total:
  - Type: Gauge
  - Description: Total number of stored events with no content record,
    including events that carry no content at all

rostra_followers_total:
  - Type: Gauge
  - Description: Total number of followers of this identity

p2p/RPC Metrics:

rostra_p2p_rpc_handlers_active:
  - Type: Gauge
  - Description: Number of RPC handlers currently executing across all connections

rostra_p2p_rpc_requests_total{rpc, return_code}:
  - Type: Counter
  - Description: Total RPC requests served, by RPC name and return code

rostra_p2p_rpc_request_duration_seconds{rpc}:
  - Type: Histogram
  - Description: RPC request handling duration in seconds, by RPC name

rostra_p2p_connection_pool_size:
  - Type: Gauge
  - Description: Number of connections currently held open by the connection pool

DHT Metrics:

rostra_dht_publish_duration_seconds:
  - Type: Histogram
  - Description: Time taken to publish the identity's signed packet

rostra_dht_publish_failures_total:
  - Type: Counter
  - Description: Total number of failed DHT publish attempts

rostra_dht_resolve_duration_seconds{outcome}:
  - Type: Histogram
  - Description: Time taken to resolve a RostraId on the DHT, by outcome

Replication Worker Metrics:

rostra_head_broadcasts_total{outcome}:
  - Type: Counter
  - Description: Total number of head pushes sent to followers, by outcome

rostra_missing_events_fetched_total:
  - Type: Counter
  - Description: Total number of missing events successfully pulled from peers

rostra_missing_content_fetched_total:
  - Type: Counter
  - Description: Total number of missing content payloads successfully pulled from peers

rostra_head_merges_total:
  - Type: Counter
  - Description: Total number of head-merge events authored to join divergent heads

Multi-Client Metrics:

rostra_multiclient_loaded_identities:
  - Type: Gauge
  - Description: Number of identities currently loaded in the multi-client LRU cache

# Usage

	import "github.com/dpc/rostra/pkg/metrics"

	collector := metrics.NewCollector(db, self)
	collector.Start()
	defer collector.Stop()

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.RPCRequestDuration, "GET_EVENT")

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration

Collector:
  - Polls pkg/storage's DB.Stats() on a 15s ticker
  - Same ticker/stopCh shape as a worker loop, not a reconciler

Label Discipline:
  - Labels are bounded (rpc name, outcome, return code), never peer or event IDs

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
