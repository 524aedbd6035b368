package dht

import (
	"context"

	"github.com/dpc/rostra/pkg/rostra"
)

// Transport is the network collaborator the resolver and publisher talk to:
// a put/get store over Ed25519 public keys, as the real pkarr/mainline DHT
// network would be accessed. This package depends only on the interface so
// the actual DHT client can be swapped in without touching the signing,
// parsing or worker logic it drives.
type Transport interface {
	// Publish stores raw (an encoded SignedPacket) under id, valid for
	// roughly ttlSecs seconds.
	Publish(ctx context.Context, id rostra.RostraId, raw []byte, ttlSecs uint32) error
	// Fetch retrieves the most recently published raw packet for id, or
	// ErrNotFound if none is known to the network.
	Fetch(ctx context.Context, id rostra.RostraId) ([]byte, error)
}
