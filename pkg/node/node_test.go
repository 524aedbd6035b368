package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpc/rostra/pkg/dht"
	"github.com/dpc/rostra/pkg/rostra"
)

// memTransport is an in-process dht.Transport standing in for the real
// signed-DNS/mainline-DHT network: it lets two Nodes in the same test
// resolve each other without any actual network.
type memTransport struct {
	mu   sync.Mutex
	data map[rostra.RostraId][]byte
}

func newMemTransport() *memTransport {
	return &memTransport{data: make(map[rostra.RostraId][]byte)}
}

func (m *memTransport) Publish(_ context.Context, id rostra.RostraId, raw []byte, _ uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = raw
	return nil
}

func (m *memTransport) Fetch(_ context.Context, id rostra.RostraId) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[id]
	if !ok {
		return nil, dht.ErrNotFound
	}
	return raw, nil
}

func TestTwoNodesReplicateOverRealTransportViaDHTResolution(t *testing.T) {
	transport := newMemTransport()

	authorSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	authorNode, err := New(Deps{
		DataDir:      t.TempDir(),
		ListenAddr:   "127.0.0.1:0",
		Secret:       authorSecret,
		DHTTransport: transport,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = authorNode.Close() })

	followerSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	followerNode, err := New(Deps{
		DataDir:      t.TempDir(),
		ListenAddr:   "127.0.0.1:0",
		Secret:       followerSecret,
		DHTTransport: transport,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = followerNode.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = authorNode.Run(ctx) }()
	go func() { _ = followerNode.Run(ctx) }()

	// Wait until the author's running publisher has published its ticket,
	// so resolution below doesn't race the publisher's first tick.
	require.Eventually(t, func() bool {
		_, err := dht.ResolveId(ctx, authorNode.RostraId(), transport)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "author should publish its ticket shortly after Run")

	post := rostra.Event{Author: authorNode.RostraId(), Kind: rostra.EventKindRaw, Timestamp: 1}
	ve, err := rostra.VerifySigned(post.SignBy(authorSecret))
	require.NoError(t, err)
	_, err = authorNode.DB.ProcessEvent(authorNode.RostraId(), ve)
	require.NoError(t, err)

	conn, err := followerNode.pool.Get(ctx, authorNode.RostraId())
	require.NoError(t, err)
	got, err := conn.GetEvent(ctx, authorNode.RostraId(), ve.Id.Short())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ve.Id.Short(), mustShort(t, *got))
}

func mustShort(t *testing.T, se rostra.SignedEvent) rostra.ShortEventId {
	t.Helper()
	ve, err := rostra.VerifySigned(se)
	require.NoError(t, err)
	return ve.Id.Short()
}
