package replication

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpc/rostra/pkg/dedupchan"
	"github.com/dpc/rostra/pkg/p2p"
	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHeadMergerJoinsConcurrentHeads(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	self := secret.RostraId()
	db := openTestDB(t)

	e1 := rostra.Event{Author: self, Kind: rostra.EventKindRaw, Timestamp: 1}
	e2 := rostra.Event{Author: self, Kind: rostra.EventKindRaw, Timestamp: 2}
	for _, e := range []rostra.Event{e1, e2} {
		ve, err := rostra.VerifySigned(e.SignBy(secret))
		require.NoError(t, err)
		_, err = db.ProcessEvent(self, ve)
		require.NoError(t, err)
	}

	page, err := db.HeadsForAuthor(self, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	merger := NewHeadMerger(secret, db)
	require.NoError(t, merger.mergeOnce())

	page, err = db.HeadsForAuthor(self, nil, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1, "merge event should have become the sole head")
}

func TestHeadMergerNoOpWithSingleHead(t *testing.T) {
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	self := secret.RostraId()
	db := openTestDB(t)

	e1 := rostra.Event{Author: self, Kind: rostra.EventKindRaw, Timestamp: 1}
	ve, err := rostra.VerifySigned(e1.SignBy(secret))
	require.NoError(t, err)
	_, err = db.ProcessEvent(self, ve)
	require.NoError(t, err)

	merger := NewHeadMerger(secret, db)
	require.NoError(t, merger.mergeOnce())

	page, err := db.HeadsForAuthor(self, nil, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func startNode(t *testing.T, secret rostra.RostraIdSecret, db *storage.DB) (*p2p.Listener, *ServerHandler) {
	t.Helper()
	listener, err := p2p.Listen("127.0.0.1:0", secret)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	handler := NewServerHandler(secret.RostraId(), db)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		for {
			conn, err := listener.Accept(ctx)
			if err != nil {
				return
			}
			go conn.Serve(ctx, handler, 4)
		}
	}()
	return listener, handler
}

type staticResolver struct{ addrs map[rostra.RostraId]string }

func (r staticResolver) ResolveAddr(_ context.Context, id rostra.RostraId) (string, error) {
	return r.addrs[id], nil
}

func TestMissingEventFetcherPullsFromAuthor(t *testing.T) {
	authorSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	authorId := authorSecret.RostraId()
	authorDB := openTestDB(t)

	e1 := rostra.Event{Author: authorId, Kind: rostra.EventKindRaw, Timestamp: 1}
	ve1, err := rostra.VerifySigned(e1.SignBy(authorSecret))
	require.NoError(t, err)
	_, err = authorDB.ProcessEvent(authorId, ve1)
	require.NoError(t, err)

	e2 := rostra.Event{Author: authorId, Kind: rostra.EventKindRaw, Timestamp: 2, ParentPrev: ptr(ve1.Id.Short())}
	ve2, err := rostra.VerifySigned(e2.SignBy(authorSecret))
	require.NoError(t, err)
	_, err = authorDB.ProcessEvent(authorId, ve2)
	require.NoError(t, err)

	listener, _ := startNode(t, authorSecret, authorDB)

	fetcherSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	fetcherDB := openTestDB(t)
	// fetcherDB only knows about e2, so e1 is a missing parent of author's.
	_, err = fetcherDB.ProcessEvent(fetcherSecret.RostraId(), ve2)
	require.NoError(t, err)

	page, err := fetcherDB.MissingParentsForAuthor(authorId, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	pool := p2p.NewPool(fetcherSecret, staticResolver{addrs: map[rostra.RostraId]string{authorId: listener.Addr()}})
	t.Cleanup(func() { _ = pool.Close() })

	_, rx := dedupchan.Channel[rostra.RostraId](4)
	fetcher := NewMissingEventFetcher(fetcherSecret.RostraId(), fetcherDB, pool, rx)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fetcher.fetchAuthor(ctx, authorId)

	_, found, err := fetcherDB.GetEvent(ve1.Id.Short())
	require.NoError(t, err)
	assert.True(t, found, "fetcher should have pulled the missing parent event")

	page, err = fetcherDB.MissingParentsForAuthor(authorId, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestHeadBroadcasterPushesNewEventToFollower(t *testing.T) {
	authorSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	authorId := authorSecret.RostraId()
	authorDB := openTestDB(t)

	followerSecret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	followerId := followerSecret.RostraId()
	followerDB := openTestDB(t)

	listener, _ := startNode(t, followerSecret, followerDB)

	follow := rostra.Event{Author: followerId, Kind: rostra.EventKindFollow, Timestamp: 1}
	// Record the follower's follow of the author directly in authorDB so
	// Followers(authorId) resolves; the broadcaster only reads
	// ids_followers, it does not care how the edge got there.
	content, err := rostra.EncodeContent(rostra.Follow{Followee: authorId})
	require.NoError(t, err)
	follow.ContentHash = rostra.HashContent(content)
	follow.ContentLen = uint32(len(content))
	ve, err := rostra.VerifySigned(follow.SignBy(followerSecret))
	require.NoError(t, err)
	_, err = authorDB.ProcessEvent(authorId, ve)
	require.NoError(t, err)
	vc, err := rostra.VerifyContent(ve, content)
	require.NoError(t, err)
	require.NoError(t, authorDB.ProcessEventContent(vc))

	followers, err := authorDB.Followers(authorId)
	require.NoError(t, err)
	require.Contains(t, followers, followerId)

	pool := p2p.NewPool(authorSecret, staticResolver{addrs: map[rostra.RostraId]string{followerId: listener.Addr()}})
	t.Cleanup(func() { _ = pool.Close() })

	post := rostra.Event{Author: authorId, Kind: rostra.EventKindRaw, Timestamp: 2}
	vePost, err := rostra.VerifySigned(post.SignBy(authorSecret))
	require.NoError(t, err)
	_, err = authorDB.ProcessEvent(authorId, vePost)
	require.NoError(t, err)

	broadcaster := NewHeadBroadcaster(authorId, authorDB, pool)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	broadcaster.broadcastOnce(ctx)

	require.Eventually(t, func() bool {
		_, found, _ := followerDB.GetEvent(vePost.Id.Short())
		return found
	}, 2*time.Second, 20*time.Millisecond, "follower should have received the author's new post")
}

func ptr[T any](v T) *T { return &v }
