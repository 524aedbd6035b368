package replication

import (
	"context"
	"sync"

	"github.com/dpc/rostra/pkg/dedupchan"
	"github.com/dpc/rostra/pkg/p2p"
	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

// newHeadsBroadcast is a tiny latest-value broadcaster, mirroring
// storage's internal watchValue, dedicated to WAIT_FOLLOWERS_NEW_HEADS
// long-polls: every event ServerHandler accepts from a peer wakes any
// caller currently blocked waiting for one.
type newHeadsBroadcast struct {
	mu    sync.Mutex
	value struct {
		author rostra.RostraId
		head   rostra.ShortEventId
	}
	wake chan struct{}
}

func newNewHeadsBroadcast() *newHeadsBroadcast {
	return &newHeadsBroadcast{wake: make(chan struct{})}
}

func (b *newHeadsBroadcast) publish(author rostra.RostraId, head rostra.ShortEventId) {
	b.mu.Lock()
	b.value.author = author
	b.value.head = head
	old := b.wake
	b.wake = make(chan struct{})
	b.mu.Unlock()
	close(old)
}

func (b *newHeadsBroadcast) next(ctx context.Context) (rostra.RostraId, rostra.ShortEventId, error) {
	b.mu.Lock()
	wake := b.wake
	b.mu.Unlock()

	select {
	case <-wake:
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.value.author, b.value.head, nil
	case <-ctx.Done():
		return rostra.RostraId{}, rostra.ShortEventId{}, ctx.Err()
	}
}

// ServerHandler implements p2p.Handler over a node's storage engine: it is
// what Conn.Serve dispatches incoming RPCs to on every accepted connection.
type ServerHandler struct {
	self          rostra.RostraId
	db            *storage.DB
	newHeads      *newHeadsBroadcast
	missingEvents *dedupchan.Sender[rostra.RostraId]
}

var _ p2p.Handler = (*ServerHandler)(nil)

// NewServerHandler constructs a ServerHandler for self's identity.
func NewServerHandler(self rostra.RostraId, db *storage.DB) *ServerHandler {
	return &ServerHandler{self: self, db: db, newHeads: newNewHeadsBroadcast()}
}

// NewServerHandlerWithMissingEventTrigger is NewServerHandler, additionally
// notifying missingEvents of an event's author on every accepted event, so
// a MissingEventFetcher wakes promptly instead of waiting for its own
// periodic trigger.
func NewServerHandlerWithMissingEventTrigger(self rostra.RostraId, db *storage.DB, missingEvents *dedupchan.Sender[rostra.RostraId]) *ServerHandler {
	return &ServerHandler{self: self, db: db, newHeads: newNewHeadsBroadcast(), missingEvents: missingEvents}
}

// Ping answers with the same nonce.
func (h *ServerHandler) Ping(_ context.Context, _ rostra.RostraId, nonce uint64) (uint64, error) {
	return nonce, nil
}

// FeedEvent verifies and stores a pushed event (and its content, if any),
// notifying any WAIT_FOLLOWERS_NEW_HEADS callers.
func (h *ServerHandler) FeedEvent(_ context.Context, _ rostra.RostraId, se rostra.SignedEvent, content []byte) error {
	ve, err := rostra.VerifySigned(se)
	if err != nil {
		return err
	}

	state, err := h.db.ProcessEvent(h.self, ve)
	if err != nil {
		return err
	}

	if state.WantsContent && content != nil {
		vc, err := rostra.VerifyContent(ve, content)
		if err != nil {
			return err
		}
		if err := h.db.ProcessEventContent(vc); err != nil {
			return err
		}
	}

	if state.New {
		h.newHeads.publish(se.Event.Author, ve.Id.Short())
		if h.missingEvents != nil {
			_ = h.missingEvents.Send(se.Event.Author)
		}
	}
	return nil
}

// GetEvent answers a pull for a specific event.
func (h *ServerHandler) GetEvent(_ context.Context, _ rostra.RostraId, author rostra.RostraId, id rostra.ShortEventId) (*rostra.SignedEvent, error) {
	se, found, err := h.db.GetEvent(id)
	if err != nil || !found || se.Event.Author != author {
		return nil, err
	}
	return &se, nil
}

// GetEventContent answers a pull for a specific event's content, trusting
// the locally-stored bytes (verified once already, at ProcessEventContent
// time) rather than re-hashing them on every serve.
func (h *ServerHandler) GetEventContent(_ context.Context, _ rostra.RostraId, id rostra.ShortEventId, contentLen uint32, contentHash [32]byte) ([]byte, error) {
	se, found, err := h.db.GetEvent(id)
	if err != nil || !found || se.Event.ContentLen != contentLen || se.Event.ContentHash != contentHash {
		return nil, err
	}
	state, found, err := h.db.GetEventContent(id)
	if err != nil || !found || state.Kind != storage.ContentPresent {
		return nil, err
	}
	return state.Bytes, nil
}

// WaitFollowersNewHeads blocks until this node accepts a new event from any
// peer, then reports it.
func (h *ServerHandler) WaitFollowersNewHeads(ctx context.Context, _ rostra.RostraId) (rostra.RostraId, rostra.ShortEventId, error) {
	return h.newHeads.next(ctx)
}
