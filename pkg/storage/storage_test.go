package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/dpc/rostra/pkg/rostra"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func signedNoContent(t *testing.T, secret rostra.RostraIdSecret, kind rostra.EventKind, ts rostra.Timestamp, parentPrev, parentAux *rostra.ShortEventId) rostra.VerifiedEvent {
	t.Helper()
	e := rostra.Event{
		Author:     secret.RostraId(),
		Kind:       kind,
		Timestamp:  ts,
		ParentPrev: parentPrev,
		ParentAux:  parentAux,
	}
	se := e.SignBy(secret)
	ve, err := rostra.VerifySigned(se)
	require.NoError(t, err)
	return ve
}

func signedWithContent[T any](t *testing.T, secret rostra.RostraIdSecret, kind rostra.EventKind, ts rostra.Timestamp, parentAux *rostra.ShortEventId, payload T) (rostra.VerifiedEvent, []byte) {
	t.Helper()
	content, err := rostra.EncodeContent(payload)
	require.NoError(t, err)
	e := rostra.NewContentEvent(kind, content)
	e.Author = secret.RostraId()
	e.Timestamp = ts
	e.ParentAux = parentAux
	se := e.SignBy(secret)
	ve, err := rostra.VerifySigned(se)
	require.NoError(t, err)
	return ve, content
}

func TestProcessEventIdempotent(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	ve := signedNoContent(t, secret, rostra.EventKindRaw, 1, nil, nil)

	res1, err := db.ProcessEvent(secret.RostraId(), ve)
	require.NoError(t, err)
	assert.True(t, res1.New)

	res2, err := db.ProcessEvent(secret.RostraId(), ve)
	require.NoError(t, err)
	assert.False(t, res2.New)
}

func TestProcessEventHeadsAndMissingParents(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	author := secret.RostraId()

	e1 := signedNoContent(t, secret, rostra.EventKindRaw, 1, nil, nil)
	_, err = db.ProcessEvent(author, e1)
	require.NoError(t, err)

	id1 := e1.Id.Short()
	page, err := db.HeadsForAuthor(author, nil, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []rostra.ShortEventId{id1}, page.Items)

	e2 := signedNoContent(t, secret, rostra.EventKindRaw, 2, &id1, nil)
	_, err = db.ProcessEvent(author, e2)
	require.NoError(t, err)

	id2 := e2.Id.Short()
	page, err = db.HeadsForAuthor(author, nil, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []rostra.ShortEventId{id2}, page.Items)

	// Referencing an unseen parent records it as missing.
	var phantom rostra.ShortEventId
	phantom[0] = 0xAB
	e3 := signedNoContent(t, secret, rostra.EventKindRaw, 3, &phantom, nil)
	_, err = db.ProcessEvent(author, e3)
	require.NoError(t, err)

	missing, err := db.MissingParentsForAuthor(author, nil, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []rostra.ShortEventId{phantom}, missing.Items)
}

func TestProcessEventContentWantsContent(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	author := secret.RostraId()

	payload := rostra.SocialPost{DjotContent: "hello"}
	ve, content := signedWithContent(t, secret, rostra.EventKindSocialPost, 1, nil, payload)

	res, err := db.ProcessEvent(author, ve)
	require.NoError(t, err)
	assert.True(t, res.WantsContent)

	vc, err := rostra.VerifyContent(ve, content)
	require.NoError(t, err)
	require.NoError(t, db.ProcessEventContent(vc))

	state, found, err := db.GetEventContent(ve.Id.Short())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ContentPresent, state.Kind)
	assert.Equal(t, content, state.Bytes)
}

func TestFollowUnfollowConflictResolution(t *testing.T) {
	db := openTestDB(t)
	follower, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	followee, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	ve, content := signedWithContent(t, follower, rostra.EventKindFollow, 10, nil, rostra.Follow{Followee: followee.RostraId()})
	_, err = db.ProcessEvent(follower.RostraId(), ve)
	require.NoError(t, err)
	vc, err := rostra.VerifyContent(ve, content)
	require.NoError(t, err)
	require.NoError(t, db.ProcessEventContent(vc))

	followees, err := db.Followees(follower.RostraId())
	require.NoError(t, err)
	assert.ElementsMatch(t, []rostra.RostraId{followee.RostraId()}, followees)

	followers, err := db.Followers(followee.RostraId())
	require.NoError(t, err)
	assert.ElementsMatch(t, []rostra.RostraId{follower.RostraId()}, followers)

	// An unfollow with an earlier timestamp than the existing follow must
	// not remove it.
	uve, ucontent := signedWithContent(t, follower, rostra.EventKindUnfollow, 5, nil, rostra.Unfollow{Followee: followee.RostraId()})
	_, err = db.ProcessEvent(follower.RostraId(), uve)
	require.NoError(t, err)
	uvc, err := rostra.VerifyContent(uve, ucontent)
	require.NoError(t, err)
	require.NoError(t, db.ProcessEventContent(uvc))

	followees, err = db.Followees(follower.RostraId())
	require.NoError(t, err)
	assert.ElementsMatch(t, []rostra.RostraId{followee.RostraId()}, followees, "earlier unfollow must not undo a later follow")

	// An unfollow at a later timestamp does remove it.
	uve2, ucontent2 := signedWithContent(t, follower, rostra.EventKindUnfollow, 20, nil, rostra.Unfollow{Followee: followee.RostraId()})
	_, err = db.ProcessEvent(follower.RostraId(), uve2)
	require.NoError(t, err)
	uvc2, err := rostra.VerifyContent(uve2, ucontent2)
	require.NoError(t, err)
	require.NoError(t, db.ProcessEventContent(uvc2))

	followees, err = db.Followees(follower.RostraId())
	require.NoError(t, err)
	assert.Empty(t, followees)
}

func TestProfileLastWriterWinsByTimestampThenEventId(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	author := secret.RostraId()

	ve1, c1 := signedWithContent(t, secret, rostra.EventKindSocialProfileUpdate, 100, nil, rostra.SocialProfileUpdate{DisplayName: "X"})
	_, err = db.ProcessEvent(author, ve1)
	require.NoError(t, err)
	vc1, err := rostra.VerifyContent(ve1, c1)
	require.NoError(t, err)
	require.NoError(t, db.ProcessEventContent(vc1))

	ve2, c2 := signedWithContent(t, secret, rostra.EventKindSocialProfileUpdate, 100, nil, rostra.SocialProfileUpdate{DisplayName: "Y"})
	_, err = db.ProcessEvent(author, ve2)
	require.NoError(t, err)
	vc2, err := rostra.VerifyContent(ve2, c2)
	require.NoError(t, err)
	require.NoError(t, db.ProcessEventContent(vc2))

	profile, found, err := db.Profile(author)
	require.NoError(t, err)
	require.True(t, found)

	// Both updates share the same timestamp, so the winner is whichever
	// has the lexicographically greater EventId.
	expected := "X"
	if bytesGreater(ve2.Id[:], ve1.Id[:]) {
		expected = "Y"
	}
	assert.Equal(t, expected, profile.DisplayName)
}

func bytesGreater(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

func TestSocialPostReplyAndReactionAggregates(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	author := secret.RostraId()

	post, _ := signedWithContent(t, secret, rostra.EventKindSocialPost, 1, nil, rostra.SocialPost{DjotContent: "root"})
	_, err = db.ProcessEvent(author, post)
	require.NoError(t, err)
	postId := post.Id.Short()

	reply, rcontent := signedWithContent(t, secret, rostra.EventKindSocialPost, 2, &postId, rostra.SocialPost{DjotContent: "reply"})
	_, err = db.ProcessEvent(author, reply)
	require.NoError(t, err)
	rvc, err := rostra.VerifyContent(reply, rcontent)
	require.NoError(t, err)
	require.NoError(t, db.ProcessEventContent(rvc))

	agg, err := db.PostAggregateFor(postId)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), agg.ReplyCount)

	upvote := signedNoContent(t, secret, rostra.EventKindSocialUpvote, 3, nil, &postId)
	_, err = db.ProcessEvent(author, upvote)
	require.NoError(t, err)

	agg, err = db.PostAggregateFor(postId)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), agg.ReactionCount)

	replies, err := db.Replies(postId, nil, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []rostra.ShortEventId{reply.Id.Short()}, replies.Items)
}

func TestDeleteReversesReplyCount(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	author := secret.RostraId()

	post, _ := signedWithContent(t, secret, rostra.EventKindSocialPost, 1, nil, rostra.SocialPost{DjotContent: "root"})
	_, err = db.ProcessEvent(author, post)
	require.NoError(t, err)
	postId := post.Id.Short()

	reply, rcontent := signedWithContent(t, secret, rostra.EventKindSocialPost, 2, &postId, rostra.SocialPost{DjotContent: "reply"})
	_, err = db.ProcessEvent(author, reply)
	require.NoError(t, err)
	rvc, err := rostra.VerifyContent(reply, rcontent)
	require.NoError(t, err)
	require.NoError(t, db.ProcessEventContent(rvc))

	replyId := reply.Id.Short()
	del := signedNoContent(t, secret, rostra.EventKindDelete, 3, nil, &replyId)
	_, err = db.ProcessEvent(author, del)
	require.NoError(t, err)

	agg, err := db.PostAggregateFor(postId)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), agg.ReplyCount)

	state, found, err := db.GetEventContent(replyId)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ContentDeleted, state.Kind)
}

func TestIdsNodesTrimToLimit(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	id := secret.RostraId()

	for i := 0; i < idsNodesLimit+5; i++ {
		nodeId := string(rune('a' + i))
		require.NoError(t, db.RecordNodeAnnouncement(id, nodeId, rostra.Timestamp(i)))
	}

	var count int
	err = db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketIdsNodes).Cursor()
		prefix := id[:]
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, idsNodesLimit, count, "only the most recent idsNodesLimit announcements should survive")

	var hasLatest, hasEarliest bool
	err = db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIdsNodes)
		latestKey := append(append([]byte{}, id[:]...), []byte(string(rune('a'+idsNodesLimit+4)))...)
		earliestKey := append(append([]byte{}, id[:]...), []byte("a")...)
		hasLatest = b.Get(latestKey) != nil
		hasEarliest = b.Get(earliestKey) != nil
		return nil
	})
	require.NoError(t, err)
	assert.True(t, hasLatest, "most recent node announcement must survive the trim")
	assert.False(t, hasEarliest, "oldest node announcement must be evicted by the trim")
}

func TestSelfHeadWatchNotifiesOnNewSelfEvent(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)
	self := secret.RostraId()

	watch := db.SelfHeadSubscribe()
	_, ok := watch.Get()
	assert.False(t, ok)

	done := make(chan rostra.ShortEventId, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		head, _, err := watch.Next(ctx)
		if err == nil {
			done <- head
		}
	}()

	time.Sleep(10 * time.Millisecond)
	ve := signedNoContent(t, secret, rostra.EventKindRaw, 1, nil, nil)
	_, err = db.ProcessEvent(self, ve)
	require.NoError(t, err)

	select {
	case head := <-done:
		assert.Equal(t, ve.Id.Short(), head)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for self head watch notification")
	}
}

func TestSelfIdentityRoundTrip(t *testing.T) {
	db := openTestDB(t)
	secret, err := rostra.GenerateRostraIdSecret()
	require.NoError(t, err)

	want := SelfIdentity{RostraId: secret.RostraId(), NodeSecret: []byte("node-secret-bytes")}
	require.NoError(t, db.SetSelfIdentity(want))

	got, found, err := db.SelfIdentity()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}
