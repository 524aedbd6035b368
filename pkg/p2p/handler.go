package p2p

import (
	"context"

	"github.com/quic-go/quic-go"

	"github.com/dpc/rostra/pkg/p2p/baostream"
	"github.com/dpc/rostra/pkg/rostra"
)

// Handler implements the RPC catalogue (§4.4) on the server side of an
// accepted connection. Implementations are invoked concurrently, once per
// in-flight stream, and must be safe for that.
type Handler interface {
	// Ping answers a liveness/echo request.
	Ping(ctx context.Context, peer rostra.RostraId, nonce uint64) (uint64, error)

	// FeedEvent accepts a pushed event from peer. If evt.Event.ContentLen is
	// non-zero, content carries the streamed, already-verified content bytes
	// (nil if the content trailer failed to arrive or to verify, which the
	// handler should treat like a content-less FEED_EVENT rather than an
	// error).
	FeedEvent(ctx context.Context, peer rostra.RostraId, evt rostra.SignedEvent, content []byte) error

	// GetEvent answers a pull for a specific event, returning nil if unknown.
	GetEvent(ctx context.Context, peer rostra.RostraId, author rostra.RostraId, id rostra.ShortEventId) (*rostra.SignedEvent, error)

	// GetEventContent answers a pull for a specific event's content,
	// returning the content bytes (which dispatch streams back as the
	// trailer) or nil if this node does not have it.
	GetEventContent(ctx context.Context, peer rostra.RostraId, id rostra.ShortEventId, contentLen uint32, contentHash [32]byte) ([]byte, error)

	// WaitFollowersNewHeads blocks until a followee's head changes, or ctx
	// is canceled, returning the updated (author, head) pair.
	WaitFollowersNewHeads(ctx context.Context, peer rostra.RostraId) (rostra.RostraId, rostra.ShortEventId, error)
}

// dispatch decodes the request body for id, invokes the matching Handler
// method, and writes the response (and, for FEED_EVENT/GET_EVENT_CONTENT,
// reads or writes the content trailer) onto stream.
func dispatch(ctx context.Context, handler Handler, peer rostra.RostraId, stream quic.Stream, id RPCId, body []byte) error {
	switch id {
	case RPCPing:
		nonce, err := decodePing(body)
		if err != nil {
			return writeResponse(stream, 1, nil)
		}
		echoed, err := handler.Ping(ctx, peer, nonce)
		if err != nil {
			return writeResponse(stream, 1, nil)
		}
		return writeResponse(stream, ReturnCodeOK, encodePing(echoed))

	case RPCFeedEvent:
		se, err := decodeSignedEvent(body)
		if err != nil {
			return writeResponse(stream, 1, nil)
		}
		var content []byte
		if se.Event.ContentLen > 0 {
			content, err = baostream.DecodeFrom(stream, se.Event.ContentLen, se.Event.ContentHash)
			if err != nil {
				content = nil
			}
		}
		if err := handler.FeedEvent(ctx, peer, se, content); err != nil {
			return writeResponse(stream, 1, nil)
		}
		return writeResponse(stream, ReturnCodeOK, nil)

	case RPCGetEvent:
		author, eid, err := decodeGetEventRequest(body)
		if err != nil {
			return writeResponse(stream, 1, nil)
		}
		se, err := handler.GetEvent(ctx, peer, author, eid)
		if err != nil {
			return writeResponse(stream, 1, nil)
		}
		return writeResponse(stream, ReturnCodeOK, encodeOptionalSignedEvent(se))

	case RPCGetEventContent:
		eid, contentLen, hash, err := decodeGetEventContentRequest(body)
		if err != nil {
			return writeResponse(stream, 1, nil)
		}
		content, err := handler.GetEventContent(ctx, peer, eid, contentLen, hash)
		if err != nil {
			return writeResponse(stream, 1, nil)
		}
		if err := writeResponse(stream, ReturnCodeOK, encodeOptionalUnit(content != nil)); err != nil {
			return err
		}
		if content != nil {
			return baostream.EncodeTo(stream, content, contentLen, hash)
		}
		return nil

	case RPCWaitFollowersNewHeads:
		author, head, err := handler.WaitFollowersNewHeads(ctx, peer)
		if err != nil {
			return writeResponse(stream, 1, nil)
		}
		resp := make([]byte, 0, rostra.RostraIdLen+rostra.ShortEventIdLen)
		resp = append(resp, author[:]...)
		resp = append(resp, head[:]...)
		return writeResponse(stream, ReturnCodeOK, resp)

	default:
		if err := writeResponse(stream, 1, nil); err != nil {
			return err
		}
		return ErrUnknownRPC
	}
}
