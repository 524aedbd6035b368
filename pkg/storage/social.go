package storage

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/dpc/rostra/pkg/rostra"
)

// postAggregateRecord is the value stored in social_posts.
type postAggregateRecord struct {
	ReplyCount    uint64 `json:"reply_count"`
	ReactionCount uint64 `json:"reaction_count"`
}

// PostAggregate is the caller-facing view of a post's reply/reaction
// counts.
type PostAggregate struct {
	ReplyCount    uint64
	ReactionCount uint64
}

func saturatingIncr(v uint64) uint64 {
	if v == ^uint64(0) {
		return v
	}
	return v + 1
}

func saturatingDecr(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	return v - 1
}

// applySocialPostTx inserts the post's zero-valued aggregate row, indexes
// it by time, and — if it is a reply (ParentAux set) — links it under its
// parent and bumps the parent's reply count.
func applySocialPostTx(tx *bolt.Tx, event rostra.Event, id rostra.ShortEventId) error {
	postsB := tx.Bucket(bucketSocialPosts)
	if postsB.Get(id[:]) == nil {
		if err := postsB.Put(id[:], mustJSON(postAggregateRecord{})); err != nil {
			return err
		}
	}
	if err := tx.Bucket(bucketSocialPostsByTime).Put(timeShortKey(event.Timestamp, id), nil); err != nil {
		return err
	}

	if event.ParentAux == nil {
		return nil
	}
	parent := *event.ParentAux
	if err := tx.Bucket(bucketSocialPostsReplies).Put(partitionShortKey(parent, id), nil); err != nil {
		return err
	}
	return bumpPostAggregateTx(tx, parent, func(agg *postAggregateRecord) { agg.ReplyCount = saturatingIncr(agg.ReplyCount) })
}

// applyReactionTx records an upvote/repost against its target (ParentAux)
// and bumps the target's reaction count.
func applyReactionTx(tx *bolt.Tx, event rostra.Event, id rostra.ShortEventId) error {
	if event.ParentAux == nil {
		return nil
	}
	target := *event.ParentAux
	if err := tx.Bucket(bucketSocialPostsReacts).Put(partitionShortKey(target, id), nil); err != nil {
		return err
	}
	return bumpPostAggregateTx(tx, target, func(agg *postAggregateRecord) { agg.ReactionCount = saturatingIncr(agg.ReactionCount) })
}

// applyDeleteTx marks the event's ParentAux target Deleted and reverses
// any aggregate it had contributed to a parent/target post. The deleted
// event's own signed record is left in place so the DAG stays connected.
func applyDeleteTx(tx *bolt.Tx, event rostra.Event, id rostra.ShortEventId) error {
	if event.ParentAux == nil {
		return nil
	}
	target := *event.ParentAux

	contentB := tx.Bucket(bucketEventsContent)
	var existing contentRecord
	if raw := contentB.Get(target[:]); raw != nil {
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
	}
	if existing.State == ContentDeleted {
		return nil
	}
	rec := contentRecord{State: ContentDeleted, DeletedBy: &id}
	if err := contentB.Put(target[:], mustJSON(rec)); err != nil {
		return err
	}

	targetEventRaw := tx.Bucket(bucketEvents).Get(target[:])
	if targetEventRaw == nil {
		return nil
	}
	targetEvent, err := decodeSignedEvent(targetEventRaw)
	if err != nil {
		return err
	}
	switch targetEvent.Event.Kind {
	case rostra.EventKindSocialPost:
		if targetEvent.Event.ParentAux != nil {
			if err := bumpPostAggregateTx(tx, *targetEvent.Event.ParentAux, func(agg *postAggregateRecord) {
				agg.ReplyCount = saturatingDecr(agg.ReplyCount)
			}); err != nil {
				return err
			}
		}
	case rostra.EventKindSocialUpvote, rostra.EventKindSocialRepost:
		if targetEvent.Event.ParentAux != nil {
			if err := bumpPostAggregateTx(tx, *targetEvent.Event.ParentAux, func(agg *postAggregateRecord) {
				agg.ReactionCount = saturatingDecr(agg.ReactionCount)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func bumpPostAggregateTx(tx *bolt.Tx, target rostra.ShortEventId, mutate func(*postAggregateRecord)) error {
	postsB := tx.Bucket(bucketSocialPosts)
	var agg postAggregateRecord
	if raw := postsB.Get(target[:]); raw != nil {
		if err := json.Unmarshal(raw, &agg); err != nil {
			return err
		}
	}
	mutate(&agg)
	return postsB.Put(target[:], mustJSON(agg))
}

// PostAggregateFor returns the reply/reaction counts for a post.
func (db *DB) PostAggregateFor(id rostra.ShortEventId) (PostAggregate, error) {
	var agg postAggregateRecord
	err := db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSocialPosts).Get(id[:])
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &agg)
	})
	return PostAggregate{ReplyCount: agg.ReplyCount, ReactionCount: agg.ReactionCount}, err
}

// socialProfileRecord is the value stored in social_profiles: last-writer-
// wins by (Timestamp, EventId) among every SOCIAL_PROFILE_UPDATE an author
// has published.
type socialProfileRecord struct {
	Timestamp   rostra.Timestamp `json:"ts"`
	EventId     rostra.EventId   `json:"event_id"`
	DisplayName string           `json:"display_name,omitempty"`
	Bio         string           `json:"bio,omitempty"`
	ImgMime     string           `json:"img_mime,omitempty"`
	Img         []byte           `json:"img,omitempty"`
}

// Profile is the caller-facing view of an identity's current profile.
type Profile struct {
	EventId     rostra.EventId
	Timestamp   rostra.Timestamp
	DisplayName string
	Bio         string
	ImgMime     string
	Img         []byte
}

// profileKeyLess is the "(ts, event_id)" lexicographic comparison used to
// decide whether a profile update supersedes the currently stored one.
func profileKeyLess(ts1 rostra.Timestamp, id1 rostra.EventId, ts2 rostra.Timestamp, id2 rostra.EventId) bool {
	if ts1 != ts2 {
		return ts1 < ts2
	}
	for i := range id1 {
		if id1[i] != id2[i] {
			return id1[i] < id2[i]
		}
	}
	return false
}

// applyProfileUpdateTx overwrites social_profiles[author] iff the new
// update's (ts, event_id) is strictly greater than what is stored.
func applyProfileUpdateTx(tx *bolt.Tx, event rostra.Event, id rostra.ShortEventId, content []byte) error {
	update, err := rostra.DecodeContent[rostra.SocialProfileUpdate](content)
	if err != nil {
		return err
	}

	profilesB := tx.Bucket(bucketSocialProfiles)
	eventId := eventIdFromShort(tx, id)

	if raw := profilesB.Get(event.Author[:]); raw != nil {
		var existing socialProfileRecord
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
		if !profileKeyLess(existing.Timestamp, existing.EventId, event.Timestamp, eventId) {
			return nil
		}
	}

	rec := socialProfileRecord{
		Timestamp:   event.Timestamp,
		EventId:     eventId,
		DisplayName: update.DisplayName,
		Bio:         update.Bio,
		ImgMime:     update.ImgMime,
		Img:         update.Img,
	}
	return profilesB.Put(event.Author[:], mustJSON(rec))
}

// eventIdFromShort recovers the full EventId for id by re-decoding and
// re-hashing its stored event; ShortEventId alone is not enough to compare
// two ids lexicographically beyond their first 16 bytes, and the profile
// last-writer-wins rule is defined over the full EventId.
func eventIdFromShort(tx *bolt.Tx, id rostra.ShortEventId) rostra.EventId {
	raw := tx.Bucket(bucketEvents).Get(id[:])
	if raw == nil {
		var full rostra.EventId
		copy(full[:], id[:])
		return full
	}
	se, err := decodeSignedEvent(raw)
	if err != nil {
		var full rostra.EventId
		copy(full[:], id[:])
		return full
	}
	return se.Event.Id()
}

// Profile returns the current profile for author, if one has ever been
// published.
func (db *DB) Profile(author rostra.RostraId) (Profile, bool, error) {
	var rec socialProfileRecord
	var found bool
	err := db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSocialProfiles).Get(author[:])
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	return Profile{
		EventId:     rec.EventId,
		Timestamp:   rec.Timestamp,
		DisplayName: rec.DisplayName,
		Bio:         rec.Bio,
		ImgMime:     rec.ImgMime,
		Img:         rec.Img,
	}, found, err
}
