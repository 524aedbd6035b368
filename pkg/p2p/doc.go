// Package p2p implements the authenticated QUIC transport and typed RPC
// surface peers use to replicate events directly with each other (§4.4):
// connection establishment and peer authentication, the length-prefixed
// request/response framing, the RPC catalogue, server-side concurrency
// control, and the RostraId-keyed connection pool.
package p2p
