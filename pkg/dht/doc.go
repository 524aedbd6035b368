// Package dht implements Rostra's identity-resolution and publication layer:
// a pkarr-style network where each key is an Ed25519 public key (a RostraId)
// and each value is a self-signed DNS packet carrying a node's current
// transport address and DAG head in TXT records.
package dht
