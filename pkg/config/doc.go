// Package config holds a Rostra node's recognized runtime options: the
// timer periods and buffer sizes the replication workers and p2p layer
// read at startup. Configuration is a YAML file applied over built-in
// defaults, not a flag-only surface.
package config
