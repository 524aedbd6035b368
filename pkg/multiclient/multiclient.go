package multiclient

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dpc/rostra/pkg/log"
	"github.com/dpc/rostra/pkg/node"
	"github.com/dpc/rostra/pkg/rostra"
)

// Loader constructs and starts a Node for id on a cache miss. Ownership of
// the returned Node transfers to the Cache, which Closes it on eviction.
type Loader func(ctx context.Context, id rostra.RostraId) (*node.Node, error)

// Cache is a "may be rebuilt externally" multi-identity handle:
// `get(id) -> Option<Handle>` and `load(id) -> Node`, backed by an LRU so a
// long-running multi-identity process bounds how many storage engines and
// QUIC listeners it keeps open at once.
type Cache struct {
	mu   sync.Mutex
	lru  *lru.Cache[rostra.RostraId, *node.Node]
	load Loader
	maxN int
}

// New constructs a Cache holding at most max identities, calling load on a
// Get miss. Evicted Nodes are closed in the background so eviction never
// blocks the caller whose Get triggered it.
func New(max int, load Loader) (*Cache, error) {
	if max <= 0 {
		max = 1
	}
	c := &Cache{load: load, maxN: max}

	evictLogger := log.WithComponent("multiclient")
	l, err := lru.NewWithEvict[rostra.RostraId, *node.Node](max, func(id rostra.RostraId, n *node.Node) {
		go func() {
			if err := n.Close(); err != nil {
				evictLogger.Warn().Err(err).Str("id", id.String()).Msg("closing evicted node failed")
			}
		}()
	})
	if err != nil {
		return nil, fmt.Errorf("multiclient: constructing LRU: %w", err)
	}
	c.lru = l
	return c, nil
}

// Get returns the already-loaded Node for id, if one is cached.
func (c *Cache) Get(id rostra.RostraId) (*node.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(id)
}

// Load returns the cached Node for id, loading (and starting to run) a new
// one via the configured Loader on a miss.
func (c *Cache) Load(ctx context.Context, id rostra.RostraId) (*node.Node, error) {
	c.mu.Lock()
	if n, ok := c.lru.Get(id); ok {
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	n, err := c.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("multiclient: loading %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.lru.Get(id); ok {
		// Another Load won the race; drop ours instead of leaking it, and
		// hand the caller the one that is actually cached.
		go func() { _ = n.Close() }()
		return existing, nil
	}
	c.lru.Add(id, n)
	return n, nil
}

// Remove evicts id's Node from the cache, if present, closing it.
func (c *Cache) Remove(id rostra.RostraId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(id)
}

// Len reports how many identities are currently loaded.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close evicts (and so closes) every cached Node.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
