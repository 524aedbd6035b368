package node

import (
	"context"

	"github.com/dpc/rostra/pkg/dht"
	"github.com/dpc/rostra/pkg/p2p"
	"github.com/dpc/rostra/pkg/rostra"
)

// dhtAddressResolver adapts dht.ResolveId into a p2p.AddressResolver: a
// RostraId is resolved to its currently-published ticket, which is then
// parsed for a direct-dial address. It implements the "Resolve" step of a
// peer Connect.
type dhtAddressResolver struct {
	transport dht.Transport
}

func newDHTAddressResolver(transport dht.Transport) *dhtAddressResolver {
	return &dhtAddressResolver{transport: transport}
}

var _ p2p.AddressResolver = (*dhtAddressResolver)(nil)

func (r *dhtAddressResolver) ResolveAddr(ctx context.Context, id rostra.RostraId) (string, error) {
	data, err := dht.ResolveId(ctx, id, r.transport)
	if err != nil {
		return "", err
	}
	if data.Ticket == "" {
		return "", dht.ErrMissingTicket
	}
	ticket, err := p2p.ParseNodeTicket(data.Ticket)
	if err != nil {
		return "", err
	}
	if len(ticket.Addrs) == 0 {
		return "", dht.ErrMissingTicket
	}
	return ticket.Addrs[0], nil
}
