// Package replication implements the background workers that keep a node's
// local DAG converging with its peers' (§4.5): broadcasting new local
// heads to followers, pulling events and content peers are missing from
// this node (and vice versa), and merging concurrent local heads back into
// one. Each worker is a long-running cooperative task holding a handle to
// the node's storage, connection pool, and address resolver; all share the
// same cancellation discipline: they exit cleanly when their context is
// canceled.
package replication
