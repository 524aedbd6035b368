package p2p

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// NodeTicket is this node's reachability advertisement: the set of socket
// addresses a dialer may try, in preference order. It plays the role the
// spec assigns to an iroh NodeTicket (address + relay hints); since no iroh
// binding exists for Go, a ticket here is simply the node's own direct QUIC
// listen addresses; there is no separate relay network.
type NodeTicket struct {
	Addrs []string // host:port, UDP
}

// Encode renders the ticket as base64url-nopad, the wire form published in
// the DHT's p2p TXT record (§4.3).
func (t NodeTicket) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(t.Addrs, ",")))
}

// ParseNodeTicket decodes the base64url-nopad wire form produced by Encode.
func ParseNodeTicket(s string) (NodeTicket, error) {
	if s == "" {
		return NodeTicket{}, fmt.Errorf("p2p: empty node ticket")
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return NodeTicket{}, fmt.Errorf("p2p: invalid node ticket: %w", err)
	}
	addrs := strings.Split(string(raw), ",")
	if len(addrs) == 0 || addrs[0] == "" {
		return NodeTicket{}, fmt.Errorf("p2p: node ticket has no addresses")
	}
	return NodeTicket{Addrs: addrs}, nil
}
