package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpc/rostra/pkg/rostra"
)

// stubHandler implements Handler with in-memory bookkeeping for tests.
type stubHandler struct {
	fed []rostra.SignedEvent
}

func (h *stubHandler) Ping(_ context.Context, _ rostra.RostraId, nonce uint64) (uint64, error) {
	return nonce, nil
}

func (h *stubHandler) FeedEvent(_ context.Context, _ rostra.RostraId, evt rostra.SignedEvent, _ []byte) error {
	h.fed = append(h.fed, evt)
	return nil
}

func (h *stubHandler) GetEvent(_ context.Context, _ rostra.RostraId, _ rostra.RostraId, _ rostra.ShortEventId) (*rostra.SignedEvent, error) {
	return nil, nil
}

func (h *stubHandler) GetEventContent(_ context.Context, _ rostra.RostraId, _ rostra.ShortEventId, _ uint32, _ [32]byte) ([]byte, error) {
	return nil, nil
}

func (h *stubHandler) WaitFollowersNewHeads(ctx context.Context, _ rostra.RostraId) (rostra.RostraId, rostra.ShortEventId, error) {
	<-ctx.Done()
	return rostra.RostraId{}, rostra.ShortEventId{}, ctx.Err()
}

func mustListen(t *testing.T, secret rostra.RostraIdSecret) *Listener {
	t.Helper()
	l, err := Listen("127.0.0.1:0", secret)
	require.NoError(t, err)
	return l
}

func TestPingRoundTripOverQUIC(t *testing.T) {
	serverSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	clientSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	listener := mustListen(t, serverSecret)
	defer listener.Close()

	handler := &stubHandler{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return
		}
		_ = conn.Serve(ctx, handler, 4)
	}()

	clientConn, err := Dial(ctx, listener.Addr(), clientSecret, serverSecret.RostraId())
	require.NoError(t, err)
	defer clientConn.Close()

	echoed, err := clientConn.Ping(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), echoed)
}

func TestFeedEventDeliversContentOverQUIC(t *testing.T) {
	serverSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	clientSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	listener := mustListen(t, serverSecret)
	defer listener.Close()

	handler := &stubHandler{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return
		}
		_ = conn.Serve(ctx, handler, 4)
	}()

	clientConn, err := Dial(ctx, listener.Addr(), clientSecret, serverSecret.RostraId())
	require.NoError(t, err)
	defer clientConn.Close()

	content := []byte("hello from a peer")
	evt := rostra.Event{
		Author:      clientSecret.RostraId(),
		Kind:        rostra.EventKindRaw,
		ContentHash: rostra.HashContent(content),
		ContentLen:  uint32(len(content)),
	}
	se := evt.SignBy(clientSecret)

	require.NoError(t, clientConn.FeedEvent(ctx, se, content))

	require.Eventually(t, func() bool { return len(handler.fed) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, se.Event.Id(), handler.fed[0].Event.Id())
}

// fixedResolver is a trivial AddressResolver used by pool tests.
type fixedResolver struct{ addr string }

func (r fixedResolver) ResolveAddr(context.Context, rostra.RostraId) (string, error) {
	return r.addr, nil
}

func TestPoolReusesAndCoalescesConnections(t *testing.T) {
	serverSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	clientSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	listener := mustListen(t, serverSecret)
	defer listener.Close()

	handler := &stubHandler{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for {
			conn, err := listener.Accept(ctx)
			if err != nil {
				return
			}
			go conn.Serve(ctx, handler, 4)
		}
	}()

	pool := NewPool(clientSecret, fixedResolver{addr: listener.Addr()})
	defer pool.Close()

	results := make(chan *Conn, 8)
	for i := 0; i < 8; i++ {
		go func() {
			c, err := pool.Get(ctx, serverSecret.RostraId())
			if err != nil {
				results <- nil
				return
			}
			results <- c
		}()
	}

	first, err := pool.Get(ctx, serverSecret.RostraId())
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		c := <-results
		require.NotNil(t, c)
		assert.Same(t, first, c)
	}
}
