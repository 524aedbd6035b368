package replication

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dpc/rostra/pkg/log"
	"github.com/dpc/rostra/pkg/p2p"
	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

// HeadBroadcaster pushes this node's own newly-authored events to its
// followers as they appear, so followers learn of new heads without
// waiting for their own missing-event fetcher pass to notice. It reacts to
// both self_head_watch (a new local event) and self_followers_watch (the
// follower list itself changed, so a previously-unreachable follower may
// now need the current head).
type HeadBroadcaster struct {
	self     rostra.RostraId
	db       *storage.DB
	pool     *p2p.Pool
	logger   zerolog.Logger
	stopCh   chan struct{}
	perPeer  time.Duration // bound on a single follower push, default 10s
}

// NewHeadBroadcaster constructs a HeadBroadcaster for self's identity.
func NewHeadBroadcaster(self rostra.RostraId, db *storage.DB, pool *p2p.Pool) *HeadBroadcaster {
	return &HeadBroadcaster{
		self:    self,
		db:      db,
		pool:    pool,
		logger:  log.WithComponent("replication.head_broadcaster"),
		stopCh:  make(chan struct{}),
		perPeer: 10 * time.Second,
	}
}

// Run blocks, broadcasting on every self-head or follower-set change, until
// ctx is canceled or Stop is called.
func (b *HeadBroadcaster) Run(ctx context.Context) {
	heads := b.db.SelfHeadSubscribe()
	followers := b.db.FollowersSubscribe()

	changed := make(chan struct{}, 1)
	wake := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	go func() {
		for {
			if _, _, err := heads.Next(ctx); err != nil {
				return
			}
			wake()
		}
	}()
	go func() {
		for {
			if err := followers.Next(ctx); err != nil {
				return
			}
			wake()
		}
	}()

	for {
		b.broadcastOnce(ctx)
		select {
		case <-changed:
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals Run to return at its next iteration.
func (b *HeadBroadcaster) Stop() { close(b.stopCh) }

func (b *HeadBroadcaster) broadcastOnce(ctx context.Context) {
	head, ok := b.db.SelfHeadSubscribe().Get()
	if !ok {
		return
	}
	se, found, err := b.db.GetEvent(head)
	if err != nil || !found {
		return
	}

	var content []byte
	if se.Event.ContentLen > 0 {
		state, found, err := b.db.GetEventContent(head)
		if err == nil && found && state.Kind == storage.ContentPresent {
			content = state.Bytes
		}
	}

	followers, err := b.db.Followers(b.self)
	if err != nil {
		b.logger.Warn().Err(err).Msg("listing followers failed")
		return
	}

	for _, follower := range followers {
		b.pushTo(ctx, follower, se, content)
	}
}

func (b *HeadBroadcaster) pushTo(ctx context.Context, follower rostra.RostraId, se rostra.SignedEvent, content []byte) {
	pctx, cancel := context.WithTimeout(ctx, b.perPeer)
	defer cancel()

	conn, err := b.pool.Get(pctx, follower)
	if err != nil {
		b.logger.Debug().Err(err).Str("follower", follower.String()).Msg("could not reach follower")
		return
	}
	if err := conn.FeedEvent(pctx, se, content); err != nil {
		b.logger.Debug().Err(err).Str("follower", follower.String()).Msg("feed_event to follower failed")
	}
}
