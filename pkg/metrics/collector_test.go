package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

func TestCollectorUpdatesGaugesFromStorage(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	author := secret.RostraId()

	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := rostra.Event{Author: author, Kind: rostra.EventKindRaw, Timestamp: 1}
	ve, err := rostra.VerifySigned(e.SignBy(secret))
	require.NoError(t, err)
	_, err = db.ProcessEvent(author, ve)
	require.NoError(t, err)

	c := NewCollector(db, author)
	c.collect()

	assert.Equal(t, float64(1), testutil.ToFloat64(EventsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(HeadsTotal))
}

func TestCollectorStartStopDoesNotPanic(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := NewCollector(db, secret.RostraId())
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
