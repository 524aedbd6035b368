package p2p

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/dpc/rostra/pkg/log"
	"github.com/dpc/rostra/pkg/rostra"
)

// defaultMaxConcurrentHandlers bounds how many RPC handlers may run at once
// per accepted connection (§4.4).
const defaultMaxConcurrentHandlers = 32

// Conn is an authenticated connection to a single peer, usable to both open
// outgoing RPC streams and (via Serve) dispatch incoming ones.
type Conn struct {
	quicConn *quic.Conn
	peer     rostra.RostraId
	logger   zerolog.Logger

	closeOnce sync.Once
}

func newConn(qc *quic.Conn, peer rostra.RostraId) *Conn {
	return &Conn{
		quicConn: qc,
		peer:     peer,
		logger:   log.WithPeerID(peer.String()).With().Str("component", "p2p.conn").Logger(),
	}
}

// Peer is the RostraId this connection authenticated as.
func (c *Conn) Peer() rostra.RostraId { return c.peer }

// Closed reports whether the underlying connection has been torn down;
// the connection pool uses this to decide whether a pooled slot needs
// replacing.
func (c *Conn) Closed() bool {
	select {
	case <-c.quicConn.Context().Done():
		return true
	default:
		return false
	}
}

// Close tears down the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.quicConn.CloseWithError(0, "closed")
	})
	return err
}

// Call opens a new bidirectional stream, writes the request, and returns the
// decoded response body (or a *FailedError for a non-zero return_code). The
// stream is closed for writing once the request is sent so the peer's
// response reader sees a clean end-of-request.
func (c *Conn) Call(ctx context.Context, id RPCId, body []byte) ([]byte, error) {
	reqID := uuid.New().String()
	c.logger.Debug().Str("rpc", id.String()).Str("req_id", reqID).Msg("calling peer")

	stream, err := c.quicConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("p2p: opening stream: %w", err)
	}
	defer stream.Close()

	if err := writeRequest(stream, id, body); err != nil {
		return nil, err
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("p2p: closing request side of stream: %w", err)
	}
	resp, err := readResponse(stream)
	if err != nil {
		c.logger.Debug().Str("rpc", id.String()).Str("req_id", reqID).Err(err).Msg("call failed")
	}
	return resp, err
}

// CallTrailer is like Call but additionally returns the stream for the
// caller to read a trailing streamed payload from (GET_EVENT_CONTENT
// content transfers). The caller owns closing the stream.
func (c *Conn) CallTrailer(ctx context.Context, id RPCId, body []byte) (quic.Stream, []byte, error) {
	stream, err := c.quicConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("p2p: opening stream: %w", err)
	}
	if err := writeRequest(stream, id, body); err != nil {
		_ = stream.Close()
		return nil, nil, err
	}
	resp, err := readResponse(stream)
	if err != nil {
		_ = stream.Close()
		return nil, nil, err
	}
	return stream, resp, nil
}

// OpenTrailerRequest opens a stream for a request the caller itself will
// stream a trailer into after the response header (the FEED_EVENT sender
// side).
func (c *Conn) OpenTrailerRequest(ctx context.Context) (quic.Stream, error) {
	return c.quicConn.OpenStreamSync(ctx)
}

// Serve accepts incoming bidirectional streams until the connection closes
// or ctx is canceled, dispatching each to handler under a semaphore bounding
// concurrent in-flight handlers. An individual handler blocking never stalls
// acceptance of the next stream.
func (c *Conn) Serve(ctx context.Context, handler Handler, maxConcurrent int) error {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentHandlers
	}
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		stream, err := c.quicConn.AcceptStream(ctx)
		if err != nil {
			return err
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			_ = stream.Close()
			return ctx.Err()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer stream.Close()
			c.handleStream(ctx, stream, handler)
		}()
	}
}

func (c *Conn) handleStream(ctx context.Context, stream quic.Stream, handler Handler) {
	id, body, err := readRequest(stream)
	if err != nil {
		if err != io.EOF {
			c.logger.Debug().Err(err).Msg("reading rpc request failed")
		}
		return
	}

	if err := dispatch(ctx, handler, c.peer, stream, id, body); err != nil {
		c.logger.Debug().Err(err).Str("rpc", id.String()).Msg("handling rpc request failed")
	}
}
