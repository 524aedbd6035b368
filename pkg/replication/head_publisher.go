package replication

import (
	"github.com/dpc/rostra/pkg/dht"
	"github.com/dpc/rostra/pkg/p2p"
	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

// listenerAddress adapts a *p2p.Listener to dht.AddressSource: the node's
// own reachable ticket is just its own listen address, there being no
// relay network to consult.
type listenerAddress struct {
	listener *p2p.Listener
}

// NodeTicket implements dht.AddressSource.
func (a listenerAddress) NodeTicket() (string, bool) {
	if a.listener == nil {
		return "", false
	}
	return p2p.NodeTicket{Addrs: []string{a.listener.Addr()}}.Encode(), true
}

// NewHeadPublisher wires db's self-head watch and listener's own address
// into a dht.Publisher, completing the head-publisher worker (§4.3, §4.5):
// it is dht.Publisher itself, just assembled from the replication package's
// collaborators rather than constructed by hand at each call site.
func NewHeadPublisher(secret rostra.RostraIdSecret, db *storage.DB, transport dht.Transport, listener *p2p.Listener, cfg dht.PublisherConfig) *dht.Publisher {
	return dht.NewPublisher(secret, transport, db.SelfHeadSubscribe(), listenerAddress{listener: listener}, cfg)
}
