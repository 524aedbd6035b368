package dht

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpc/rostra/pkg/rostra"
)

// memTransport is an in-memory Transport stand-in for the real DHT network,
// used only by these tests.
type memTransport struct {
	mu        sync.Mutex
	packets   map[rostra.RostraId][]byte
	publishes int
}

func newMemTransport() *memTransport {
	return &memTransport{packets: make(map[rostra.RostraId][]byte)}
}

func (m *memTransport) Publish(_ context.Context, id rostra.RostraId, raw []byte, _ uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets[id] = raw
	m.publishes++
	return nil
}

func (m *memTransport) Fetch(_ context.Context, id rostra.RostraId) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.packets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func TestSignedPacketRoundTrip(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	head := rostra.ShortEventId{1, 2, 3}
	sp, err := BuildSignedPacket(secret, "dGlja2V0", &head, 181, 1000)
	require.NoError(t, err)

	raw := sp.Encode()
	decoded, err := ParseSignedPacket(raw)
	require.NoError(t, err)
	assert.Equal(t, secret.RostraId(), decoded.PublicKey)

	ticket, headStr, err := decoded.records()
	require.NoError(t, err)
	assert.Equal(t, "dGlja2V0", ticket)
	assert.Equal(t, head.String(), headStr)
}

func TestSignedPacketTamperedDetected(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	sp, err := BuildSignedPacket(secret, "dGlja2V0", nil, 181, 1000)
	require.NoError(t, err)
	raw := sp.Encode()
	raw[len(raw)-1] ^= 0xFF

	_, err = ParseSignedPacket(raw)
	assert.ErrorIs(t, err, rostra.ErrSignatureInvalid)
}

func TestResolveIdRoundTrip(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	transport := newMemTransport()

	head := rostra.ShortEventId{9, 9, 9}
	sp, err := BuildSignedPacket(secret, "dGlja2V0", &head, 181, 1000)
	require.NoError(t, err)
	require.NoError(t, transport.Publish(context.Background(), secret.RostraId(), sp.Encode(), 181))

	data, err := ResolveId(context.Background(), secret.RostraId(), transport)
	require.NoError(t, err)
	assert.Equal(t, "dGlja2V0", data.Ticket)
	require.NotNil(t, data.Head)
	assert.Equal(t, head, *data.Head)
}

func TestResolveIdNotFound(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	transport := newMemTransport()

	_, err = ResolveId(context.Background(), secret.RostraId(), transport)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveIdMalformedTicketRejected(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	transport := newMemTransport()

	sp, err := BuildSignedPacket(secret, "not valid base64url!!", nil, 181, 1000)
	require.NoError(t, err)
	require.NoError(t, transport.Publish(context.Background(), secret.RostraId(), sp.Encode(), 181))

	_, err = ResolveId(context.Background(), secret.RostraId(), transport)
	assert.ErrorIs(t, err, ErrMalformedTicket)
}

func TestResolveIdWrongPublicKeyRejected(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	other, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	transport := newMemTransport()

	sp, err := BuildSignedPacket(secret, "", nil, 181, 1000)
	require.NoError(t, err)
	// Stored under other's key even though signed by secret: simulates a
	// transport bug or attacker serving a mismatched packet.
	require.NoError(t, transport.Publish(context.Background(), other.RostraId(), sp.Encode(), 181))

	_, err = ResolveId(context.Background(), other.RostraId(), transport)
	assert.ErrorIs(t, err, ErrWrongType)
}

type fakeHeadSource struct {
	mu   sync.Mutex
	head rostra.ShortEventId
	ok   bool
	wake chan struct{}
}

func newFakeHeadSource() *fakeHeadSource {
	return &fakeHeadSource{wake: make(chan struct{})}
}

func (f *fakeHeadSource) Get() (rostra.ShortEventId, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.ok
}

func (f *fakeHeadSource) Next(ctx context.Context) (rostra.ShortEventId, bool, error) {
	f.mu.Lock()
	wake := f.wake
	f.mu.Unlock()
	select {
	case <-wake:
		return f.Get()
	case <-ctx.Done():
		return rostra.ShortEventId{}, false, ctx.Err()
	}
}

func (f *fakeHeadSource) set(head rostra.ShortEventId) {
	f.mu.Lock()
	f.head = head
	f.ok = true
	old := f.wake
	f.wake = make(chan struct{})
	f.mu.Unlock()
	close(old)
}

type fakeAddressSource struct{ ticket string }

func (f fakeAddressSource) NodeTicket() (string, bool) { return f.ticket, f.ticket != "" }

func TestPublisherPublishesOnHeadChangeAndTick(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	transport := newMemTransport()
	heads := newFakeHeadSource()
	addr := fakeAddressSource{ticket: "dGlja2V0"}

	pub := NewPublisher(secret, transport, heads, addr, PublisherConfig{Interval: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go pub.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	heads.set(rostra.ShortEventId{7, 7, 7})

	<-ctx.Done()

	data, err := ResolveId(context.Background(), secret.RostraId(), transport)
	require.NoError(t, err)
	require.NotNil(t, data.Head)
	assert.Equal(t, rostra.ShortEventId{7, 7, 7}, *data.Head)
	assert.True(t, transport.publishes >= 2, "expected at least an initial publish plus one after the head change/tick, got %d", transport.publishes)
}
