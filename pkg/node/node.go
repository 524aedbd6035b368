package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dpc/rostra/pkg/config"
	"github.com/dpc/rostra/pkg/dedupchan"
	"github.com/dpc/rostra/pkg/dht"
	"github.com/dpc/rostra/pkg/log"
	"github.com/dpc/rostra/pkg/p2p"
	"github.com/dpc/rostra/pkg/replication"
	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

// Node owns one Rostra identity's complete running stack: its storage
// engine, its QUIC listener and RPC handler, its connection pool, and the
// replication and publication background workers. Each Node serves exactly
// one identity.
type Node struct {
	Secret rostra.RostraIdSecret
	DB     *storage.DB

	listener *p2p.Listener
	pool     *p2p.Pool
	handler  *replication.ServerHandler

	publisher       *dht.Publisher
	headBroadcaster *replication.HeadBroadcaster
	missingEvents   *replication.MissingEventFetcher
	missingContent  *replication.MissingContentFetcher
	headMerger      *replication.HeadMerger
	missingEventsTx *dedupchan.Sender[rostra.RostraId]

	perConnRPCConcurrency int
	logger                zerolog.Logger
}

// Deps supplies the collaborators a Node cannot construct for itself: the
// dataDir it should open its storage engine under, and the network
// transport its DHT publisher/resolver should use (the signed-DNS client
// is an external collaborator the core only consumes, never constructs).
type Deps struct {
	DataDir      string
	ListenAddr   string
	Secret       rostra.RostraIdSecret
	DHTTransport dht.Transport
	Config       config.Config
}

// New opens deps.DataDir's storage engine, binds the QUIC listener, and
// wires every replication/publication worker, without starting any of
// them; call Run to start.
func New(deps Deps) (*Node, error) {
	db, err := storage.Open(deps.DataDir)
	if err != nil {
		return nil, fmt.Errorf("node: opening storage: %w", err)
	}

	listener, err := p2p.Listen(deps.ListenAddr, deps.Secret)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("node: listening: %w", err)
	}

	self := deps.Secret.RostraId()

	missingEventsTx, missingEventsRx := dedupchan.Channel[rostra.RostraId](deps.Config.MissingEventChanCapacity)
	handler := replication.NewServerHandlerWithMissingEventTrigger(self, db, missingEventsTx)

	resolver := newDHTAddressResolver(deps.DHTTransport)
	pool := p2p.NewPool(deps.Secret, resolver)

	n := &Node{
		Secret:          deps.Secret,
		DB:              db,
		listener:        listener,
		pool:            pool,
		handler:         handler,
		missingEventsTx: missingEventsTx,
		headBroadcaster: replication.NewHeadBroadcaster(self, db, pool),
		missingEvents:   replication.NewMissingEventFetcher(self, db, pool, missingEventsRx),
		missingContent: replication.NewMissingContentFetcher(self, db, pool, replication.MissingContentFetcherConfig{
			Interval: deps.Config.ContentFetchInterval(),
		}),
		headMerger: replication.NewHeadMergerWithJitter(deps.Secret, db, deps.Config.HeadMergerJitterMax()),
		publisher: replication.NewHeadPublisher(deps.Secret, db, deps.DHTTransport, listener, dht.PublisherConfig{
			Interval: deps.Config.PublishingInterval(),
		}),
		perConnRPCConcurrency: deps.Config.PerConnRPCConcurrency,
		logger:                log.WithComponent("node"),
	}
	if n.perConnRPCConcurrency <= 0 {
		n.perConnRPCConcurrency = 32
	}
	return n, nil
}

// RostraId is this node's identity.
func (n *Node) RostraId() rostra.RostraId { return n.Secret.RostraId() }

// ListenAddr is the address the QUIC transport is actually bound to
// (resolved, in case deps.ListenAddr used an ephemeral port).
func (n *Node) ListenAddr() string { return n.listener.Addr() }

// Run starts every background worker and the accept loop, blocking until
// ctx is canceled or a worker returns a non-cancellation error. Each
// worker's failure to reach an individual peer never surfaces here — those
// are logged and retried internally; only a fatal setup error propagates.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return n.acceptLoop(ctx) })
	g.Go(func() error { n.headBroadcaster.Run(ctx); return nil })
	g.Go(func() error { n.missingEvents.Run(ctx); return nil })
	g.Go(func() error { n.missingContent.Run(ctx); return nil })
	g.Go(func() error { n.headMerger.Run(ctx); return nil })
	g.Go(func() error { n.publisher.Run(ctx); return nil })

	return g.Wait()
}

func (n *Node) acceptLoop(ctx context.Context) error {
	for {
		conn, err := n.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("node: accept: %w", err)
		}
		go func() {
			if err := conn.Serve(ctx, n.handler, n.perConnRPCConcurrency); err != nil {
				n.logger.Debug().Err(err).Str("peer", conn.Peer().String()).Msg("connection serve ended")
			}
		}()
	}
}

// Close stops every background worker and releases the listener and
// storage engine. It does not wait for Run to return; callers should
// cancel Run's context first.
func (n *Node) Close() error {
	n.headBroadcaster.Stop()
	n.missingContent.Stop()
	n.headMerger.Stop()
	n.publisher.Stop()
	n.missingEventsTx.Close()
	_ = n.pool.Close()
	_ = n.listener.Close()
	return n.DB.Close()
}
