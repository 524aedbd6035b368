package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpc/rostra/pkg/rostra"
)

func TestStatsReflectsEventsAndMissingParents(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	author := secret.RostraId()
	db := openTestDB(t)

	missingParent := rostra.ShortEventId{}
	e := rostra.Event{Author: author, Kind: rostra.EventKindRaw, Timestamp: 1, ParentPrev: &missingParent}
	ve, err := rostra.VerifySigned(e.SignBy(secret))
	require.NoError(t, err)
	_, err = db.ProcessEvent(author, ve)
	require.NoError(t, err)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Events)
	assert.Equal(t, 1, stats.MissingParents)
	assert.Equal(t, 1, stats.MissingContent, "event has no content, so it counts as missing")
}
