package storage

import (
	"encoding/json"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/dpc/rostra/pkg/rostra"
)

type followeeRecord struct {
	Timestamp rostra.Timestamp   `json:"ts"`
	Persona   *rostra.PersonaId  `json:"persona,omitempty"`
}

type unfollowedRecord struct {
	Timestamp rostra.Timestamp `json:"ts"`
}

// applyFollowTx upserts the follow edge and its mirror, resolving
// conflicting re-follows by keeping whichever has the later timestamp
// (ties keep the existing record).
func applyFollowTx(tx *bolt.Tx, event rostra.Event, content []byte) error {
	follow, err := rostra.DecodeContent[rostra.Follow](content)
	if err != nil {
		return err
	}

	key := rostraIdPairKey(event.Author, follow.Followee)
	followeesB := tx.Bucket(bucketIdsFollowees)

	if raw := followeesB.Get(key); raw != nil {
		var existing followeeRecord
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
		if existing.Timestamp >= event.Timestamp {
			return nil
		}
	}

	persona := follow.Persona
	rec := followeeRecord{Timestamp: event.Timestamp, Persona: &persona}
	if err := followeesB.Put(key, mustJSON(rec)); err != nil {
		return err
	}

	mirrorKey := rostraIdPairKey(follow.Followee, event.Author)
	if err := tx.Bucket(bucketIdsFollowers).Put(mirrorKey, nil); err != nil {
		return err
	}

	return tx.Bucket(bucketIdsUnfollowed).Delete(key)
}

// applyUnfollowTx records a tombstone and removes the follow edge (and its
// mirror) when the edge is not newer than the unfollow.
func applyUnfollowTx(tx *bolt.Tx, event rostra.Event, content []byte) error {
	unfollow, err := rostra.DecodeContent[rostra.Unfollow](content)
	if err != nil {
		return err
	}

	key := rostraIdPairKey(event.Author, unfollow.Followee)
	if err := tx.Bucket(bucketIdsUnfollowed).Put(key, mustJSON(unfollowedRecord{Timestamp: event.Timestamp})); err != nil {
		return err
	}

	followeesB := tx.Bucket(bucketIdsFollowees)
	if raw := followeesB.Get(key); raw != nil {
		var existing followeeRecord
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
		if existing.Timestamp <= event.Timestamp {
			if err := followeesB.Delete(key); err != nil {
				return err
			}
			mirrorKey := rostraIdPairKey(unfollow.Followee, event.Author)
			if err := tx.Bucket(bucketIdsFollowers).Delete(mirrorKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// Followees returns every RostraId that author currently follows.
func (db *DB) Followees(author rostra.RostraId) ([]rostra.RostraId, error) {
	var out []rostra.RostraId
	err := db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketIdsFollowees).Cursor()
		prefix := author[:]
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			_, followee := splitRostraIdPairKey(k)
			out = append(out, followee)
		}
		return nil
	})
	return out, err
}

// Followers returns every RostraId currently following author.
func (db *DB) Followers(author rostra.RostraId) ([]rostra.RostraId, error) {
	var out []rostra.RostraId
	err := db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketIdsFollowers).Cursor()
		prefix := author[:]
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			_, follower := splitRostraIdPairKey(k)
			out = append(out, follower)
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// idsNodesLimit is the number of most-recent node announcements kept per
// identity before the excess with the oldest announcement timestamps is
// evicted.
const idsNodesLimit = 10

type nodeAnnouncementRecord struct {
	AnnouncementTs rostra.Timestamp `json:"announcement_ts"`
}

// RecordNodeAnnouncement upserts a (RostraId, NodeId) endpoint record and
// trims that identity's node list down to the idsNodesLimit most recent
// announcements.
func (db *DB) RecordNodeAnnouncement(id rostra.RostraId, nodeId string, ts rostra.Timestamp) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIdsNodes)
		key := append(append([]byte{}, id[:]...), []byte(nodeId)...)
		if err := b.Put(key, mustJSON(nodeAnnouncementRecord{AnnouncementTs: ts})); err != nil {
			return err
		}
		return trimIdsNodesTx(tx, id)
	})
}

// trimIdsNodesTx keeps only the idsNodesLimit most-recently-announced
// nodes for id, evicting the excess entries with the oldest announcement
// timestamps; among equal timestamps the larger key is evicted first.
func trimIdsNodesTx(tx *bolt.Tx, id rostra.RostraId) error {
	b := tx.Bucket(bucketIdsNodes)
	c := b.Cursor()
	prefix := id[:]

	type entry struct {
		key string
		ts  rostra.Timestamp
	}
	var entries []entry
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		var rec nodeAnnouncementRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		entries = append(entries, entry{key: string(k), ts: rec.AnnouncementTs})
	}
	if len(entries) <= idsNodesLimit {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ts != entries[j].ts {
			return entries[i].ts > entries[j].ts // most recent first
		}
		return entries[i].key < entries[j].key
	})
	for _, e := range entries[idsNodesLimit:] {
		if err := b.Delete([]byte(e.key)); err != nil {
			return err
		}
	}
	return nil
}

// SelfIdentity is the record stored in ids_self: the node's own public
// identity and its transport (p2p) node secret. The author's Ed25519
// identity secret is never stored here, or anywhere in this database.
type SelfIdentity struct {
	RostraId   rostra.RostraId
	NodeSecret []byte
}

var idsSelfKey = []byte("self")

// SetSelfIdentity stores the node's own identity record, created once at
// first run.
func (db *DB) SetSelfIdentity(self SelfIdentity) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdsSelf).Put(idsSelfKey, mustJSON(selfIdentityRecord{
			RostraId:   self.RostraId,
			NodeSecret: self.NodeSecret,
		}))
	})
}

type selfIdentityRecord struct {
	RostraId   rostra.RostraId `json:"rostra_id"`
	NodeSecret []byte          `json:"node_secret"`
}

// SelfIdentity returns the node's own identity record, if one was ever set.
func (db *DB) SelfIdentity() (SelfIdentity, bool, error) {
	var out SelfIdentity
	var found bool
	err := db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketIdsSelf).Get(idsSelfKey)
		if raw == nil {
			return nil
		}
		var rec selfIdentityRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		out = SelfIdentity{RostraId: rec.RostraId, NodeSecret: rec.NodeSecret}
		found = true
		return nil
	})
	return out, found, err
}

// RecordIdFull stores the short->full mapping for a RostraId so peers that
// only carry a ShortRostraId can recover the full key.
func (db *DB) RecordIdFull(id rostra.RostraId) error {
	short := id.Short()
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdsFull).Put(short[:], id.Rest())
	})
}

// ResolveShortRostraId recovers a full RostraId from its short form, if
// previously recorded via RecordIdFull.
func (db *DB) ResolveShortRostraId(short rostra.ShortRostraId) (rostra.RostraId, bool, error) {
	var id rostra.RostraId
	var found bool
	err := db.bolt.View(func(tx *bolt.Tx) error {
		rest := tx.Bucket(bucketIdsFull).Get(short[:])
		if rest == nil {
			return nil
		}
		var err error
		id, err = rostra.AssembleRostraId(short, rest)
		found = err == nil
		return err
	})
	return id, found, err
}
