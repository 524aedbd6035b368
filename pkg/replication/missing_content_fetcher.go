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

// missingContentPageSize bounds how many missing-content ids are pulled per
// MissingContent page in a single pass.
const missingContentPageSize = 100

// defaultContentFetchInterval is the production cadence between passes.
const defaultContentFetchInterval = 10 * time.Minute

// MissingContentFetcher periodically scans every stored event whose content
// has not arrived yet and pulls it from the author or one of the author's
// other followers, reusing one connection per author for the whole pass.
type MissingContentFetcher struct {
	self     rostra.RostraId
	db       *storage.DB
	pool     *p2p.Pool
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// MissingContentFetcherConfig configures a MissingContentFetcher.
type MissingContentFetcherConfig struct {
	Interval time.Duration // default 10m; tests typically pass ~10s
}

// NewMissingContentFetcher constructs a MissingContentFetcher.
func NewMissingContentFetcher(self rostra.RostraId, db *storage.DB, pool *p2p.Pool, cfg MissingContentFetcherConfig) *MissingContentFetcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultContentFetchInterval
	}
	return &MissingContentFetcher{
		self:     self,
		db:       db,
		pool:     pool,
		interval: interval,
		logger:   log.WithComponent("replication.missing_content_fetcher"),
		stopCh:   make(chan struct{}),
	}
}

// Run blocks, running one pass immediately and then every Interval, until
// ctx is canceled or Stop is called.
func (f *MissingContentFetcher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		f.passOnce(ctx)
		select {
		case <-ticker.C:
		case <-f.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals Run to return at its next iteration.
func (f *MissingContentFetcher) Stop() { close(f.stopCh) }

func (f *MissingContentFetcher) passOnce(ctx context.Context) {
	conns := make(map[rostra.RostraId]*p2p.Conn)
	getConn := func(id rostra.RostraId) (*p2p.Conn, bool) {
		if c, ok := conns[id]; ok {
			return c, true
		}
		c, err := f.pool.Get(ctx, id)
		if err != nil {
			f.logger.Debug().Err(err).Str("peer", id.String()).Msg("could not reach peer for content backfill")
			conns[id] = nil
			return nil, false
		}
		conns[id] = c
		return c, true
	}

	var cursor []byte
	for {
		page, err := f.db.MissingContent(cursor, missingContentPageSize)
		if err != nil {
			f.logger.Warn().Err(err).Msg("listing missing content failed")
			return
		}

		for _, id := range page.Items {
			f.fetchOne(ctx, id, getConn)
		}

		if page.NextCursor == nil {
			return
		}
		cursor = page.NextCursor
	}
}

func (f *MissingContentFetcher) fetchOne(ctx context.Context, id rostra.ShortEventId, getConn func(rostra.RostraId) (*p2p.Conn, bool)) {
	se, found, err := f.db.GetEvent(id)
	if err != nil || !found {
		return
	}

	candidates := []rostra.RostraId{se.Event.Author}
	if followers, err := f.db.Followers(se.Event.Author); err == nil {
		candidates = append(candidates, followers...)
	}

	for _, candidate := range candidates {
		if candidate == f.self {
			continue
		}
		conn, ok := getConn(candidate)
		if !ok {
			continue
		}
		content, err := conn.GetEventContent(ctx, id, se.Event.ContentLen, se.Event.ContentHash)
		if err != nil {
			f.logger.Debug().Err(err).Str("peer", candidate.String()).Str("event", id.String()).Msg("get_event_content failed")
			continue
		}
		if content == nil {
			continue
		}

		vc, err := rostra.VerifyContent(rostra.AssumeVerified(se), content)
		if err != nil {
			f.logger.Warn().Err(err).Str("event", id.String()).Msg("peer returned content failing verification")
			continue
		}
		if err := f.db.ProcessEventContent(vc); err != nil {
			f.logger.Warn().Err(err).Str("event", id.String()).Msg("storing fetched content failed")
			continue
		}
		return
	}
}
