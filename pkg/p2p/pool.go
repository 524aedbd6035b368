package p2p

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dpc/rostra/pkg/rostra"
)

// AddressResolver turns a RostraId into a dialable socket address, typically
// backed by a dht.ResolveId call plus NodeTicket parsing.
type AddressResolver interface {
	ResolveAddr(ctx context.Context, id rostra.RostraId) (string, error)
}

// Pool is a RostraId-keyed connection pool (§4.4). Each entry is a
// lazily-established connection; a failed connect is not cached, so the
// next Get retries rather than returning a fixed "tried, failed" slot, but
// concurrent Gets for the same id coalesce onto the same in-flight dial via
// the singleflight group, standing in for a once-cell-per-slot.
type Pool struct {
	secret   rostra.RostraIdSecret
	resolver AddressResolver

	mu    sync.Mutex
	conns map[rostra.RostraId]*Conn

	group singleflight.Group
}

// NewPool constructs a Pool dialing as secret's identity.
func NewPool(secret rostra.RostraIdSecret, resolver AddressResolver) *Pool {
	return &Pool{
		secret:   secret,
		resolver: resolver,
		conns:    make(map[rostra.RostraId]*Conn),
	}
}

// Get returns a live connection to id, reusing a pooled one if it is still
// open, otherwise resolving id's address and dialing fresh. The pool's lock
// is held only for the map lookup/store, never across the resolve+dial, so
// concurrent Gets for distinct ids proceed fully in parallel.
func (p *Pool) Get(ctx context.Context, id rostra.RostraId) (*Conn, error) {
	if c, ok := p.cached(id); ok {
		return c, nil
	}

	v, err, _ := p.group.Do(id.String(), func() (interface{}, error) {
		if c, ok := p.cached(id); ok {
			return c, nil
		}
		addr, err := p.resolver.ResolveAddr(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("p2p: resolving address for %s: %w", id, err)
		}
		conn, err := Dial(ctx, addr, p.secret, id)
		if err != nil {
			return nil, fmt.Errorf("p2p: dialing %s: %w", id, err)
		}
		p.mu.Lock()
		p.conns[id] = conn
		p.mu.Unlock()
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Conn), nil
}

// cached returns a pooled connection for id if present and not closed,
// evicting it first if it has gone stale.
func (p *Pool) cached(id rostra.RostraId) (*Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[id]
	if !ok {
		return nil, false
	}
	if c.Closed() {
		delete(p.conns, id)
		return nil, false
	}
	return c, true
}

// Close tears down every pooled connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for id, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, id)
	}
	return firstErr
}
