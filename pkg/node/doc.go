// Package node wires one Rostra identity's complete stack together: the
// storage engine, the QUIC transport and its RPC handler, the DHT
// publisher, and the five replication workers of pkg/replication. A Node
// is the top-level handle: one struct owning every long-running goroutine,
// supervised with golang.org/x/sync/errgroup.
package node
