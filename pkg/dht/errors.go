package dht

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no packet is published under a RostraId.
var ErrNotFound = errors.New("dht: id not found")

// ErrMalformedTicket is returned when a resolved packet's p2p record does
// not decode to a well-formed ticket.
var ErrMalformedTicket = errors.New("dht: malformed p2p ticket")

// ErrWrongType is returned when a resolved packet's DNS answer exists under
// a recognized name but is not a TXT record.
var ErrWrongType = errors.New("dht: unexpected DNS record type")

// ErrMissingTicket is returned when a resolved packet carries no p2p record
// at all, distinct from ErrMalformedTicket (a present-but-unparseable one).
var ErrMissingTicket = errors.New("dht: packet has no p2p ticket")

// ResolveError wraps a failure from the underlying network transport while
// resolving an id, as distinct from a well-formed "not found" response.
type ResolveError struct {
	Source error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("dht: resolving from network: %v", e.Source)
}

func (e *ResolveError) Unwrap() error { return e.Source }
