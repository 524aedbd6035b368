package p2p

import (
	"context"
	"errors"
	"fmt"

	"github.com/dpc/rostra/pkg/p2p/baostream"
	"github.com/dpc/rostra/pkg/rostra"
)

// Ping round-trips nonce off the peer.
func (c *Conn) Ping(ctx context.Context, nonce uint64) (uint64, error) {
	resp, err := c.Call(ctx, RPCPing, encodePing(nonce))
	if err != nil {
		return 0, err
	}
	return decodePing(resp)
}

// FeedEvent pushes evt to the peer, streaming content after the request
// when evt carries any, per the wire contract (client writes request_bytes
// then, for FEED_EVENT specifically, streams the trailer itself rather than
// waiting on the server).
func (c *Conn) FeedEvent(ctx context.Context, evt rostra.SignedEvent, content []byte) error {
	stream, err := c.quicConn.OpenStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("p2p: opening stream: %w", err)
	}
	defer stream.Close()

	if err := writeRequest(stream, RPCFeedEvent, encodeSignedEvent(evt)); err != nil {
		return err
	}
	if evt.Event.ContentLen > 0 {
		if len(content) == 0 {
			return fmt.Errorf("p2p: feed_event: event declares content_len=%d but no content given", evt.Event.ContentLen)
		}
		if err := baostream.EncodeTo(stream, content, evt.Event.ContentLen, evt.Event.ContentHash); err != nil {
			return fmt.Errorf("p2p: feed_event: streaming content: %w", err)
		}
	}
	_, err = readResponse(stream)
	return err
}

// GetEvent pulls a specific event from the peer, returning nil if the peer
// does not have it.
func (c *Conn) GetEvent(ctx context.Context, author rostra.RostraId, id rostra.ShortEventId) (*rostra.SignedEvent, error) {
	resp, err := c.Call(ctx, RPCGetEvent, encodeGetEventRequest(author, id))
	if err != nil {
		return nil, err
	}
	return decodeOptionalSignedEvent(resp)
}

// GetEventContent pulls a specific event's content from the peer, returning
// nil if the peer does not have it.
func (c *Conn) GetEventContent(ctx context.Context, id rostra.ShortEventId, contentLen uint32, contentHash [32]byte) ([]byte, error) {
	stream, resp, err := c.CallTrailer(ctx, RPCGetEventContent, encodeGetEventContentRequest(id, contentLen, contentHash))
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	present, err := decodeOptionalUnit(resp)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	content, err := baostream.DecodeFrom(stream, contentLen, contentHash)
	switch {
	case errors.Is(err, baostream.ErrChunkMismatch), errors.Is(err, baostream.ErrLengthMismatch), errors.Is(err, baostream.ErrHashMismatch):
		return nil, fmt.Errorf("%w: %w", ErrEventVerification, err)
	case errors.Is(err, baostream.ErrContentTooLarge):
		return nil, fmt.Errorf("%w: %w", ErrDecodingBao, err)
	case err != nil:
		return nil, err
	}
	return content, nil
}

// WaitFollowersNewHeads long-polls the peer for the next (author, head)
// change it observes among its own followees.
func (c *Conn) WaitFollowersNewHeads(ctx context.Context) (rostra.RostraId, rostra.ShortEventId, error) {
	resp, err := c.Call(ctx, RPCWaitFollowersNewHeads, nil)
	if err != nil {
		return rostra.RostraId{}, rostra.ShortEventId{}, err
	}
	want := rostra.RostraIdLen + rostra.ShortEventIdLen
	if len(resp) != want {
		return rostra.RostraId{}, rostra.ShortEventId{}, fmt.Errorf("p2p: wait_followers_new_heads response has length %d, want %d", len(resp), want)
	}
	var author rostra.RostraId
	var head rostra.ShortEventId
	copy(author[:], resp[:rostra.RostraIdLen])
	copy(head[:], resp[rostra.RostraIdLen:])
	return author, head, nil
}
