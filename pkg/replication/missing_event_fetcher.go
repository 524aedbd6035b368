package replication

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dpc/rostra/pkg/dedupchan"
	"github.com/dpc/rostra/pkg/log"
	"github.com/dpc/rostra/pkg/p2p"
	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

// missingEventPageSize bounds how many missing-parent ids are pulled per
// MissingParentsForAuthor page.
const missingEventPageSize = 100

// MissingEventFetcher drains a dedup queue of authors known to have
// unresolved missing-parent references and, for each, opens (at most) one
// peer connection per pass to fetch every missing event it can.
type MissingEventFetcher struct {
	self   rostra.RostraId
	db     *storage.DB
	pool   *p2p.Pool
	rx     *dedupchan.Receiver[rostra.RostraId]
	logger zerolog.Logger
}

// NewMissingEventFetcher constructs a MissingEventFetcher draining rx.
func NewMissingEventFetcher(self rostra.RostraId, db *storage.DB, pool *p2p.Pool, rx *dedupchan.Receiver[rostra.RostraId]) *MissingEventFetcher {
	return &MissingEventFetcher{
		self:   self,
		db:     db,
		pool:   pool,
		rx:     rx,
		logger: log.WithComponent("replication.missing_event_fetcher"),
	}
}

// Run drains the queue until ctx is canceled or the channel closes.
func (f *MissingEventFetcher) Run(ctx context.Context) {
	for {
		author, err := f.rx.Recv(ctx)
		if err != nil {
			return
		}
		f.fetchAuthor(ctx, author)
	}
}

func (f *MissingEventFetcher) fetchAuthor(ctx context.Context, author rostra.RostraId) {
	conn, err := f.pool.Get(ctx, author)
	if err != nil {
		f.logger.Debug().Err(err).Str("author", author.String()).Msg("could not reach author to fetch missing events")
		return
	}

	var cursor []byte
	for {
		page, err := f.db.MissingParentsForAuthor(author, cursor, missingEventPageSize)
		if err != nil {
			f.logger.Warn().Err(err).Str("author", author.String()).Msg("listing missing parents failed")
			return
		}

		for _, id := range page.Items {
			if err := f.fetchOne(ctx, conn, author, id); err != nil {
				f.logger.Debug().Err(err).Str("author", author.String()).Str("event", id.String()).Msg("fetching missing event failed")
			}
		}

		if page.NextCursor == nil {
			return
		}
		cursor = page.NextCursor
	}
}

func (f *MissingEventFetcher) fetchOne(ctx context.Context, conn *p2p.Conn, author rostra.RostraId, id rostra.ShortEventId) error {
	se, err := conn.GetEvent(ctx, author, id)
	if err != nil {
		return err
	}
	if se == nil {
		return nil
	}
	if se.Event.Author != author {
		return fmt.Errorf("replication: peer returned event authored by %s for request about %s", se.Event.Author, author)
	}

	ve, err := rostra.VerifySigned(*se)
	if err != nil {
		return err
	}
	if ve.Id.Short() != id {
		return fmt.Errorf("replication: peer returned event %s for requested id %s", ve.Id, id)
	}

	_, err = f.db.ProcessEvent(f.self, ve)
	return err
}
