package dht

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpc/rostra/pkg/rostra"
)

func TestHTTPTransportPublishAndFetchRoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewRendezvousServer())
	t.Cleanup(srv.Close)

	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	id := secret.RostraId()

	transport := NewHTTPTransport(srv.URL)
	ctx := context.Background()

	require.NoError(t, transport.Publish(ctx, id, []byte("packet-bytes"), 60))

	got, err := transport.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("packet-bytes"), got)
}

func TestHTTPTransportFetchUnknownIdReturnsNotFound(t *testing.T) {
	srv := httptest.NewServer(NewRendezvousServer())
	t.Cleanup(srv.Close)

	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	transport := NewHTTPTransport(srv.URL)
	_, err = transport.Fetch(context.Background(), secret.RostraId())
	assert.ErrorIs(t, err, ErrNotFound)
}
