package replication

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/dpc/rostra/pkg/log"
	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

// defaultHeadMergerJitterMax is the upper bound of the random delay
// inserted before each merge attempt, spreading merges out so
// concurrently-writing processes on the same identity (unusual, but not
// forbidden) don't race, absent an explicit config.Config override.
const defaultHeadMergerJitterMax = 60 * time.Second

// HeadMerger watches for this node's own DAG having more than one current
// head (e.g. after two events were authored from the same identity without
// either observing the other, such as across a restart) and joins them with
// a null-content merge event.
type HeadMerger struct {
	self      rostra.RostraId
	secret    rostra.RostraIdSecret
	db        *storage.DB
	logger    zerolog.Logger
	stopCh    chan struct{}
	rand      *rand.Rand
	jitterMax time.Duration
}

// NewHeadMerger constructs a HeadMerger for secret's identity, with the
// default 60s jitter bound.
func NewHeadMerger(secret rostra.RostraIdSecret, db *storage.DB) *HeadMerger {
	return NewHeadMergerWithJitter(secret, db, defaultHeadMergerJitterMax)
}

// NewHeadMergerWithJitter constructs a HeadMerger using jitterMax in place
// of the default, corresponding to config.Config's head_merger_jitter_max.
func NewHeadMergerWithJitter(secret rostra.RostraIdSecret, db *storage.DB, jitterMax time.Duration) *HeadMerger {
	return &HeadMerger{
		self:      secret.RostraId(),
		secret:    secret,
		db:        db,
		logger:    log.WithComponent("replication.head_merger"),
		stopCh:    make(chan struct{}),
		jitterMax: jitterMax,
		// #nosec G404 -- jitter only, not security-sensitive.
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks, attempting a merge (after a random jitter delay) on every
// self-head change, until ctx is canceled or Stop is called.
func (m *HeadMerger) Run(ctx context.Context) {
	watch := m.db.SelfHeadSubscribe()

	for {
		if _, _, err := watch.Next(ctx); err != nil {
			return
		}

		var jitter time.Duration
		if m.jitterMax > 0 {
			jitter = time.Duration(m.rand.Int63n(int64(m.jitterMax)))
		}
		select {
		case <-time.After(jitter):
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}

		if err := m.mergeOnce(); err != nil {
			m.logger.Warn().Err(err).Msg("merging heads failed")
		}
	}
}

// Stop signals Run to return at its next iteration.
func (m *HeadMerger) Stop() { close(m.stopCh) }

func (m *HeadMerger) mergeOnce() error {
	page, err := m.db.HeadsForAuthor(m.self, nil, 2)
	if err != nil {
		return err
	}
	if len(page.Items) < 2 {
		return nil
	}

	prev, aux := page.Items[0], page.Items[1]
	merge := rostra.Event{
		Author:     m.self,
		Kind:       rostra.EventKindNull,
		Timestamp:  rostra.Timestamp(time.Now().Unix()),
		ParentPrev: &prev,
		ParentAux:  &aux,
	}
	se := merge.SignBy(m.secret)

	ve, err := rostra.VerifySigned(se)
	if err != nil {
		return err
	}
	_, err = m.db.ProcessEvent(m.self, ve)
	return err
}
