// Package storage implements the per-node event DAG store: a single-writer,
// many-reader bbolt database holding the canonical event log plus every
// derived index (heads, missing-parents, by-time, follow graph, social
// views). All cross-table bookkeeping for one event happens inside one
// bbolt write transaction, so no reader ever observes a partially applied
// event.
package storage
